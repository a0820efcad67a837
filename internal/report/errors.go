package report

// GenericFailureMessage is what callers see when a pipeline stage fails for
// any reason other than a validation problem. The underlying error is logged,
// never surfaced.
const GenericFailureMessage = "report generation unable to complete; manual creation suggested"

// ValidationError means the job can never succeed as submitted (insufficient
// input data or missing required linkage). Its message is user-facing and is
// recorded on the job verbatim.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
