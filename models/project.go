package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project is a named ingestion scope. The root is either an absolute
// directory path or a base URL for registered remote documents.
type Project struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Alias     string             `bson:"alias" json:"alias"`
	Root      string             `bson:"root" json:"root"`
	Active    bool               `bson:"active" json:"active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
