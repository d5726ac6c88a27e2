package errors

import "github.com/pkg/errors"

var (
	// startup errors
	ErrConfig         = errors.New("invalid configuration")
	ErrAuthentication = errors.New("mailbox authentication failed")

	// message boundary errors, abort only the current message
	ErrClaim         = errors.New("claim failed")
	ErrClaimStuck    = errors.New("claimed message could not be located in processing")
	ErrClaimConsumed = errors.New("claim token already consumed")
	ErrPublish       = errors.New("publish failed")
	ErrComplete      = errors.New("complete failed")

	// below the message boundary, recovered locally
	ErrExtraction         = errors.New("attachment extraction failed")
	ErrTranscription      = errors.New("transcription failed")
	ErrEmptyTranscription = errors.New("transcription is empty")
	ErrCleanup            = errors.New("scratch cleanup failed")

	// run errors
	ErrRunInProgress = errors.New("transcription run already in progress")
	ErrNotConnected  = errors.New("mailbox not connected")
	ErrMessageGone   = errors.New("message not found in folder")

	// the move succeeded but the message was not found again in the destination
	ErrMovedUnlocated = errors.New("message moved but not located in destination")
)
