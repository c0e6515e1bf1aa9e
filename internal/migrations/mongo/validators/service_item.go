package validators

import "go.mongodb.org/mongo-driver/bson"

var ServiceItemValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"service_category",
			"status",
			"pricing",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"service_category": bson.M{
				"bsonType": "string",
				"pattern":  "^[a-z0-9]+(-[a-z0-9]+)*$",
			},

			"name": bson.M{
				"bsonType":  "string",
				"maxLength": 120,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"draft",
					"published",
					"archived",
				},
			},

			"pricing": bson.M{
				"bsonType": "object",
				"required": []string{"base_price"},
				"properties": bson.M{
					"base_price": bson.M{
						"bsonType": "number",
						"minimum":  0,
					},
					"currency": bson.M{
						"bsonType": "string",
					},
				},
			},

			"specifications": bson.M{
				"bsonType": "object",
			},

			"availability": bson.M{
				"bsonType": "object",
				"properties": bson.M{
					"blocked_dates": bson.M{
						"bsonType": []string{"array", "null"},
						"items": bson.M{
							"bsonType": "string",
							"pattern":  `^\d{4}-\d{2}-\d{2}$`,
						},
					},
					"available_slots": bson.M{
						"bsonType": []string{"array", "null"},
						"items": bson.M{
							"bsonType": "string",
							"pattern":  `^\d{2}:\d{2}$`,
						},
					},
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
