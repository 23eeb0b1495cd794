package validators

import "go.mongodb.org/mongo-driver/bson"

var NotificationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"student_id",
			"subject",
			"message",
			"is_read",
			"email_status",
			"sms_status",
			"date_sent",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"student_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"subject": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"message": bson.M{
				"bsonType": "string",
			},

			"is_read": bson.M{
				"bsonType": "bool",
			},

			"email_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"Pending",
					"Sent",
					"Failed",
					"No Email",
				},
			},

			"sms_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"Pending",
					"Sent",
					"Failed",
					"No Phone",
				},
			},

			"date_sent": bson.M{
				"bsonType": "date",
			},
		},
	},
}
