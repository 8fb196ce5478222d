package dynamo

// DynamoDB attribute names used in expressions across repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldRevokedAt = "revoked_at"
	fieldToken     = "token"
)
