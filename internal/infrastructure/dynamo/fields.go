package dynamo

// DynamoDB attribute names used in expressions across the repos.
const (
	fieldNotificationID = "notification_id"
	fieldUserID         = "user_id"
	fieldRead           = "read" // reserved word: always go through a #name placeholder
	fieldTokens         = "tokens"
	fieldDeviceInfo     = "device_info"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
	fieldRoles          = "roles"
	fieldEnable         = "enable"
)

// notificationsByUserIndex orders a recipient's notifications by ULID, i.e. by creation.
const notificationsByUserIndex = "user_id-notification_id-index"

// batchWriteLimit is DynamoDB's maximum number of requests per BatchWriteItem call.
const batchWriteLimit = 25
