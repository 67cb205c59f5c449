package submsrvc

import (
	"net/http"

	"github.com/ls1intum/Artemis-sub011/srvcerror"
)

const ErrCodeSubmissionNotFound = "submission_not_found"

func ErrSubmissionNotFound() *srvcerror.Error {
	return srvcerror.New(
		ErrCodeSubmissionNotFound,
		"the referenced submission was not found",
	).SetHttpStatusCode(http.StatusNotFound)
}

const ErrCodeCommitHashMissing = "commit_hash_missing"

func ErrCommitHashMissing() *srvcerror.Error {
	return srvcerror.New(
		ErrCodeCommitHashMissing,
		"no commit hash could be determined for the submission",
	).SetHttpStatusCode(http.StatusBadRequest)
}
