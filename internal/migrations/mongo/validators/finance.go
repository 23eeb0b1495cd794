package validators

import "go.mongodb.org/mongo-driver/bson"

var FinanceTransactionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"transaction_type",
			"amount",
			"student_id",
			"description",
			"status",
			"date_created",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"transaction_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"payment",
					"refund",
					"renewal",
				},
			},

			"amount": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"student_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"description": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 500,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"completed",
					"cancelled",
				},
			},

			"date_created": bson.M{
				"bsonType": "date",
			},

			"date_completed": bson.M{
				"bsonType": "date",
			},
		},
	},
}
