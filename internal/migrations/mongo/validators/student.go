package validators

import "go.mongodb.org/mongo-driver/bson"

var StudentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reg_no",
			"full_name",
			"gender",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"reg_no": bson.M{
				"bsonType":  "string",
				"minLength": 8,
				"maxLength": 20,
			},

			"full_name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"email": bson.M{
				"bsonType": "string",
			},

			"phone": bson.M{
				"bsonType": "string",
			},

			"gender": bson.M{
				"bsonType": "string",
				"enum": []string{
					"Male",
					"Female",
				},
			},

			"course": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			"year_of_study": bson.M{
				"bsonType":  "string",
				"maxLength": 20,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
