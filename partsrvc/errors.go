package partsrvc

import (
	"fmt"
	"net/http"

	"github.com/ls1intum/Artemis-sub011/srvcerror"
)

const ErrCodeParticipationNotFound = "participation_not_found"

func ErrParticipationNotFound() *srvcerror.Error {
	return srvcerror.New(
		ErrCodeParticipationNotFound,
		"the referenced participation was not found",
	).SetHttpStatusCode(http.StatusNotFound)
}

const ErrCodeParticipationNotInitialized = "participation_not_initialized"

// ErrParticipationNotInitialized signals that repository / build plan setup
// has not finished yet. Handlers log it at warn level; it is expected while
// infrastructure provisioning is in flight.
func ErrParticipationNotInitialized(state InitState) *srvcerror.Error {
	return srvcerror.New(
		ErrCodeParticipationNotInitialized,
		fmt.Sprintf("participation setup still in progress (state %s)", state),
	).SetHttpStatusCode(http.StatusConflict)
}

const ErrCodeIllegalStateTransition = "illegal_state_transition"

func ErrIllegalStateTransition(from InitState, to InitState) *srvcerror.Error {
	return srvcerror.New(
		ErrCodeIllegalStateTransition,
		fmt.Sprintf("cannot move participation from %s to %s", from, to),
	).SetHttpStatusCode(http.StatusConflict)
}

const ErrCodeTeardownIncomplete = "teardown_incomplete"

// ErrTeardownIncomplete reports a force-delete that could not remove all
// remote state. The local record is gone; the message names what survived.
func ErrTeardownIncomplete(detail string) *srvcerror.Error {
	return srvcerror.New(
		ErrCodeTeardownIncomplete,
		"participation deleted with remaining remote state: "+detail,
	).SetHttpStatusCode(http.StatusBadGateway)
}
