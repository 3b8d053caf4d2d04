package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Chunk is one ordered slice of an item's normalized content. Order values
// are 0-based and gapless for a given parent after every successful upsert.
// Keeping chunks in their own collection enables efficient search filters.
type Chunk struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChunkID        string             `bson:"chunk_id" json:"chunk_id"`
	ParentIdentity string             `bson:"parent_identity" json:"parent_identity"`
	Order          int                `bson:"order" json:"order"`
	Text           string             `bson:"text" json:"text"`
	CharCount      int                `bson:"char_count" json:"char_count"`
	WordCount      int                `bson:"word_count" json:"word_count"`
}
