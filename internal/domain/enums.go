package domain

// LedgerAction names the reason of a usage log entry.
type LedgerAction string

const (
	ActionExtract LedgerAction = "extract"
	ActionRefund  LedgerAction = "refund"
	ActionRedeem  LedgerAction = "redeem"
	ActionGrant   LedgerAction = "grant"
	ActionLogin   LedgerAction = "login"
	ActionLogout  LedgerAction = "logout"
	ActionUpload  LedgerAction = "upload"
)

// CodeStatus is the lifecycle state of a redeem code.
type CodeStatus string

const (
	CodeUnused CodeStatus = "unused"
	CodeUsed   CodeStatus = "used"
)

// ColumnType is the declared type of a schema field or table column.
type ColumnType string

const (
	ColumnNumber ColumnType = "number"
	ColumnString ColumnType = "string"
)

// IsValid reports whether t is a supported column type.
func (t ColumnType) IsValid() bool {
	return t == ColumnNumber || t == ColumnString
}

// AllowedImageTypes maps accepted upload content types to a file extension.
var AllowedImageTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

const (
	MinLedgerAmount = 1
	MaxLedgerAmount = 100
	MinCodeLength   = 6
	MaxCodeLength   = 64

	MaxInitialBalance = 1_000_000
)
