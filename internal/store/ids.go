package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Entity ids are stable remote identifiers, never local sequence numbers:
// "issues/<number>", "pulls/<number>", "comments/<comment-id>".

// ItemID builds the entity id for an item of the given top-level collection.
func ItemID(collection string, number int) string {
	return fmt.Sprintf("%s/%d", collection, number)
}

// CommentEntityID builds the entity id for a comment.
func CommentEntityID(id int64) string {
	return fmt.Sprintf("comments/%d", id)
}

// KindForCollection maps a top-level collection key to the item kind stored
// in the mirror.
func KindForCollection(collection string) string {
	if collection == "pulls" {
		return "pull"
	}
	return "issue"
}

// CollectionForKind is the inverse of KindForCollection.
func CollectionForKind(kind string) string {
	if kind == "pull" {
		return "pulls"
	}
	return "issues"
}

// SplitEntityID splits an entity id into its collection and numeric part.
func SplitEntityID(entityID string) (collection string, number int64, err error) {
	idx := strings.IndexByte(entityID, '/')
	if idx <= 0 || idx == len(entityID)-1 {
		return "", 0, fmt.Errorf("malformed entity id %q", entityID)
	}
	collection = entityID[:idx]
	number, err = strconv.ParseInt(entityID[idx+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed entity id %q: %w", entityID, err)
	}
	return collection, number, nil
}
