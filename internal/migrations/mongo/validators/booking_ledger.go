package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingLedgerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"version",
		},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"version": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
			},
			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
