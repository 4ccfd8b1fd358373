package store

import "testing"

func TestSplitEntityID(t *testing.T) {
	tests := []struct {
		id             string
		wantCollection string
		wantNumber     int64
		wantErr        bool
	}{
		{"issues/42", "issues", 42, false},
		{"pulls/7", "pulls", 7, false},
		{"comments/123456789012", "comments", 123456789012, false},
		{"issues/", "", 0, true},
		{"/42", "", 0, true},
		{"42", "", 0, true},
		{"issues/abc", "", 0, true},
	}

	for _, tt := range tests {
		collection, number, err := SplitEntityID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("SplitEntityID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if collection != tt.wantCollection || number != tt.wantNumber {
			t.Errorf("SplitEntityID(%q) = %q, %d", tt.id, collection, number)
		}
	}
}

func TestKindMapping(t *testing.T) {
	if KindForCollection("pulls") != "pull" || KindForCollection("issues") != "issue" {
		t.Error("KindForCollection mapping wrong")
	}
	if CollectionForKind("pull") != "pulls" || CollectionForKind("issue") != "issues" {
		t.Error("CollectionForKind mapping wrong")
	}
	if ItemID("issues", 9) != "issues/9" {
		t.Errorf("ItemID = %q", ItemID("issues", 9))
	}
	if CommentEntityID(55) != "comments/55" {
		t.Errorf("CommentEntityID = %q", CommentEntityID(55))
	}
}
