package validators

import "go.mongodb.org/mongo-driver/bson"

var HostelValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"gender",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"gender": bson.M{
				"bsonType": "string",
				"enum": []string{
					"Male",
					"Female",
				},
			},
		},
	},
}

var RoomValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"hostel_id",
			"number",
			"capacity",
			"price",
			"is_vacant",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"hostel_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 10,
			},

			"capacity": bson.M{
				"bsonType": "int",
				"minimum":  1,
				"maximum":  12,
			},

			"price": bson.M{
				"bsonType": "long",
				"minimum":  0,
			},

			"is_vacant": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
