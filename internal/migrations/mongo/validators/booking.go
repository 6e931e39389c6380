package validators

import "go.mongodb.org/mongo-driver/bson"

const (
	datePattern  = `^\d{4}-\d{2}-\d{2}$`
	clockPattern = `^([01]\d|2[0-3]):[0-5]\d$`
)

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"room_id",
			"user_id",
			"booking_date",
			"start_time",
			"end_time",
			"status",
			"cancellation_token",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"room_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"booking_date": bson.M{
				"bsonType": "string",
				"pattern":  datePattern,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},

			"purpose": bson.M{
				"bsonType":  "string",
				"maxLength": 1000,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"active",
					"cancelled",
				},
			},

			"cancellation_token": bson.M{
				"bsonType":  "string",
				"minLength": 32,
				"maxLength": 64,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"cancelled_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
