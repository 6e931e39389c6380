package validators

import "go.mongodb.org/mongo-driver/bson"

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"username",
			"email",
			"first_name",
			"last_name",
			"role",
			"is_active",
			"password_hash",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},
			"username": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 50,
			},
			"email": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},
			"first_name": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},
			"last_name": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},
			"role": bson.M{
				"bsonType": "string",
				"enum":     []string{"user", "admin"},
			},
			"is_active": bson.M{
				"bsonType": "bool",
			},
			"password_hash": bson.M{
				"bsonType":  "string",
				"minLength": 1,
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
