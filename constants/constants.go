package constants

const (
	AccessConsortia   = "consortia"
	AccessInstitution = "institution"
	AccessRestricted  = "restricted"
	ActionDelete      = "Delete"
	ActionDPN         = "DPN"
	ActionFixityCheck = "Fixity Check"
	ActionIngest      = "Ingest"
	ActionRestore     = "Restore"
	AlgMd5            = "md5"
	AlgSha256         = "sha256"
	AlgSha512         = "sha512"
	APTrustID         = "aptrust.org"
	APTrustName       = "APTrust"
	EmptyUUID         = "00000000-0000-0000-0000-000000000000"
	InstTypeMember    = "member"
	InstTypeSub       = "subscription"
	OutcomeFailure    = "Failure"
	OutcomeSuccess    = "Success"
	StateActive       = "A"
	StateDeleted      = "D"
	StorageGlacierOH  = "Glacier-OH"
	StorageGlacierOR  = "Glacier-OR"
	StorageGlacierVA  = "Glacier-VA"
	StorageStandard   = "Standard"
)

// WorkItem stages, in the order a successful ingest passes through them.
// Restore and DPN items use Package and Resolve. All items start at
// Requested.
const (
	StageRequested = "Requested"
	StageReceive   = "Receive"
	StageFetch     = "Fetch"
	StageUnpack    = "Unpack"
	StageValidate  = "Validate"
	StageStore     = "Store"
	StageRecord    = "Record"
	StageCleanup   = "Cleanup"
	StageResolve   = "Resolve"
	StagePackage   = "Package"
)

const (
	StatusPending   = "Pending"
	StatusStarted   = "Started"
	StatusSuccess   = "Success"
	StatusFailed    = "Failed"
	StatusCancelled = "Cancelled"
)

// PREMIS event types. These strings appear in stored event records and
// in the API, so they must not change.
const (
	EventAccessAssignment     = "access assignment"
	EventCapture              = "capture"
	EventCompression          = "compression"
	EventCreation             = "creation"
	EventDeaccession          = "deaccession"
	EventDecompression        = "decompression"
	EventDecryption           = "decryption"
	EventDeletion             = "deletion"
	EventDigestCalculation    = "message digest calculation"
	EventFixityCheck          = "fixity check"
	EventIdentifierAssignment = "identifier assignment"
	EventIngestion            = "ingestion"
	EventMigration            = "migration"
	EventNormalization        = "normalization"
	EventReplication          = "replication"
	EventSignatureValidation  = "digital signature validation"
	EventValidation           = "validation"
	EventVirusCheck           = "virus check"
)

const (
	RoleAdmin     = "admin"
	RoleInstAdmin = "institutional_admin"
	RoleInstUser  = "institutional_user"
	RoleNone      = "none"
)

// SearchFieldAll is the search_field value meaning "match the query
// against every searchable field of the entity."
const SearchFieldAll = "All Fields"

// TypeAll is the object_type param value that unions Object, File and
// WorkItem search results.
const TypeAll = "All Types"

const (
	TypeFile     = "GenericFile"
	TypeObject   = "IntellectualObject"
	TypeWorkItem = "WorkItem"
)

var AccessSettings = []string{
	AccessConsortia,
	AccessInstitution,
	AccessRestricted,
}

var ActionValues = []string{
	ActionDelete,
	ActionDPN,
	ActionFixityCheck,
	ActionIngest,
	ActionRestore,
}

var CompletedStatusValues = []string{
	StatusSuccess,
	StatusFailed,
	StatusCancelled,
}

var DigestAlgorithms = []string{
	AlgMd5,
	AlgSha256,
	AlgSha512,
}

var DPNTaskValues = []string{
	"sync",
	"ingest",
	"replication",
	"restore",
	"fixity",
}

var EventTypeValues = []string{
	EventAccessAssignment,
	EventCapture,
	EventCompression,
	EventCreation,
	EventDeaccession,
	EventDecompression,
	EventDecryption,
	EventDeletion,
	EventDigestCalculation,
	EventFixityCheck,
	EventIdentifierAssignment,
	EventIngestion,
	EventMigration,
	EventNormalization,
	EventReplication,
	EventSignatureValidation,
	EventValidation,
	EventVirusCheck,
}

var IncompleteStatusValues = []string{
	StatusPending,
	StatusStarted,
}

var Roles = []string{
	RoleAdmin,
	RoleInstAdmin,
	RoleInstUser,
}

var StageValues = []string{
	StageRequested,
	StageReceive,
	StageFetch,
	StageUnpack,
	StageValidate,
	StageStore,
	StageRecord,
	StageCleanup,
	StageResolve,
	StagePackage,
}

var States = []string{
	StateActive,
	StateDeleted,
}

var StatusValues = []string{
	StatusPending,
	StatusStarted,
	StatusSuccess,
	StatusFailed,
	StatusCancelled,
}

var StorageOptions = []string{
	StorageStandard,
	StorageGlacierOH,
	StorageGlacierOR,
	StorageGlacierVA,
}
