package checksrvc

import (
	"fmt"
	"net/http"

	"github.com/ls1intum/Artemis-sub011/srvcerror"
)

// SubKind identifies which referenced entity failed the consistency check.
type SubKind string

const (
	SubKindVcsProject    SubKind = "vcs_project_missing"
	SubKindTemplateRepo  SubKind = "template_repository_missing"
	SubKindSolutionRepo  SubKind = "solution_repository_missing"
	SubKindTestRepo      SubKind = "test_repository_missing"
	SubKindAuxiliaryRepo SubKind = "auxiliary_repository_missing"
	SubKindTemplatePlan  SubKind = "template_build_plan_missing"
	SubKindSolutionPlan  SubKind = "solution_build_plan_missing"
)

const ErrCodeConsistencyCheckFailed = "consistency_check_failed"

// ErrConsistencyCheckFailed aborts the import before any mutation. The sub
// kind travels in the error code suffix so callers can tell what is broken.
func ErrConsistencyCheckFailed(kind SubKind, detail string) *srvcerror.Error {
	return srvcerror.New(
		fmt.Sprintf("%s:%s", ErrCodeConsistencyCheckFailed, kind),
		fmt.Sprintf("exercise import aborted: %s (%s)", kind, detail),
	).SetHttpStatusCode(http.StatusConflict)
}
