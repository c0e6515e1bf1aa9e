package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"service_id",
			"owner_id",
			"user_id",
			"selection",
			"quote",
			"snapshot",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"service_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"owner_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"selection": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"start_date": bson.M{
						"bsonType": []string{"string", "null"},
						"pattern":  `^\d{4}-\d{2}-\d{2}$`,
					},
					"end_date": bson.M{
						"bsonType": []string{"string", "null"},
						"pattern":  `^\d{4}-\d{2}-\d{2}$`,
					},
				},
			},

			"quote": bson.M{
				"bsonType": "object",
				"required": []string{"total", "currency"},
				"properties": bson.M{
					"total": bson.M{
						"bsonType": "number",
						"minimum":  0,
					},
				},
			},

			"snapshot": bson.M{
				"bsonType": "object",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"cancelled",
				},
			},

			"refund_amount": bson.M{
				"bsonType": "number",
				"minimum":  0,
			},

			"cancelled_at": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
