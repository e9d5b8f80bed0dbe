package schedule

import "errors"

var (
	// ErrInputShape indicates the task collection is not a list of task records.
	ErrInputShape = errors.New("malformed task collection")

	// ErrPersistence indicates the schedule could not be stored. The
	// previously stored schedule is left intact.
	ErrPersistence = errors.New("schedule persistence failed")

	// ErrUnknownAction indicates an unsupported planning action.
	ErrUnknownAction = errors.New("unknown planning action")

	// ErrTaskStore indicates tasks could not be read from the task store.
	ErrTaskStore = errors.New("task store unavailable")
)

// ErrorKind maps an error to the kind reported in planning responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInputShape):
		return "input_shape"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	case errors.Is(err, ErrTaskStore):
		return "task_store"
	default:
		return "internal"
	}
}
