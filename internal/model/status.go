package model

// StatusTag is the single-letter payment status code returned by SpaceRemit.
type StatusTag string

const (
	TagApproved     StatusTag = "A"
	TagPending      StatusTag = "B"
	TagRefused      StatusTag = "C"
	TagProcessing   StatusTag = "D"
	TagExpired      StatusTag = "E"
	TagFailed       StatusTag = "F"
	TagTestApproved StatusTag = "T"
)

// InternalStatus is the order-lifecycle bucket a status tag maps into.
type InternalStatus string

const (
	StatusPending    InternalStatus = "pending"
	StatusProcessing InternalStatus = "processing"
	StatusCompleted  InternalStatus = "completed"
	StatusFailed     InternalStatus = "failed"
	StatusCancelled  InternalStatus = "cancelled"
)

// Known reports whether the tag is part of the SpaceRemit vocabulary.
func (t StatusTag) Known() bool {
	switch t {
	case TagApproved, TagPending, TagRefused, TagProcessing, TagExpired, TagFailed, TagTestApproved:
		return true
	}
	return false
}

// Internal maps the tag to its order-status bucket. Unknown tags map to
// pending so a notification is never silently dropped; the caller logs the
// anomaly.
func (t StatusTag) Internal() InternalStatus {
	switch t {
	case TagApproved, TagTestApproved:
		return StatusCompleted
	case TagPending:
		return StatusPending
	case TagProcessing:
		return StatusProcessing
	case TagFailed:
		return StatusFailed
	case TagRefused, TagExpired:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// Label returns the human-readable status name.
func (t StatusTag) Label() string {
	switch t {
	case TagApproved:
		return "Completed"
	case TagPending:
		return "Pending"
	case TagRefused:
		return "Refused"
	case TagProcessing:
		return "Processing"
	case TagExpired:
		return "Expired"
	case TagFailed:
		return "Failed"
	case TagTestApproved:
		return "Test Payment"
	default:
		return "Unknown"
	}
}

// Paid reports whether the tag marks the payment as collected.
func (t StatusTag) Paid() bool {
	return t == TagApproved || t == TagTestApproved
}

// AcceptableTags returns the tags a browser form return may legitimately
// carry. Test payments are only acceptable in test mode.
func AcceptableTags(testMode bool) []StatusTag {
	tags := []StatusTag{TagApproved, TagPending, TagProcessing, TagExpired, TagFailed}
	if testMode {
		tags = append(tags, TagTestApproved)
	}
	return tags
}
