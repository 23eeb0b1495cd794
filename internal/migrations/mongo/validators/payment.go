package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"booking_id",
			"amount",
			"payment_type",
			"verified",
			"reference",
			"date_paid",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"amount": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"payment_type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"prepayment",
					"full",
				},
			},

			"verified": bson.M{
				"bsonType": "bool",
			},

			"reference": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"date_paid": bson.M{
				"bsonType": "date",
			},
		},
	},
}
