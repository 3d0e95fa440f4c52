package scheduling

import "fmt"

// Action is something an actor does to an appointment.
type Action string

const (
	ActionCancel     Action = "cancel"
	ActionAccept     Action = "accept"
	ActionReschedule Action = "reschedule"
	ActionEdit       Action = "edit"
	ActionFinish     Action = "finish"
)

type transition struct {
	from   Status
	action Action
}

var transitions = map[transition]Status{
	{StatusApproved, ActionCancel}:     StatusCancelled,
	{StatusApproved, ActionReschedule}: StatusRescheduled,
	{StatusApproved, ActionEdit}:       StatusApproved,
	{StatusApproved, ActionFinish}:     StatusFinished,
	{StatusRescheduled, ActionAccept}:  StatusApproved,
	{StatusRescheduled, ActionCancel}:  StatusCancelled,
	{StatusRescheduled, ActionFinish}:  StatusFinished,
}

var actionRoles = map[Action][]Role{
	ActionCancel:     {RolePatient, RoleDoctor},
	ActionAccept:     {RolePatient},
	ActionReschedule: {RoleDoctor},
	ActionEdit:       {RolePatient},
	ActionFinish:     {RoleSystem},
}

// Apply returns the status an appointment moves to when role performs action
// on it. The role is checked before the current status, so a doctor trying
// to approve is refused regardless of state.
func Apply(current Status, action Action, role Role) (Status, error) {
	roles, ok := actionRoles[action]
	if !ok {
		return "", validationf("unknown action %q", action)
	}
	permitted := false
	for _, r := range roles {
		if r == role {
			permitted = true
			break
		}
	}
	if !permitted {
		return "", forbidden(fmt.Sprintf("%s may not %s an appointment", role, action))
	}

	next, ok := transitions[transition{current, action}]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s appointment", ErrTransitionNotAllowed, action, current)
	}
	return next, nil
}

// ActionForTarget maps an explicitly requested status to the action that
// reaches it. Only approved and cancelled may be requested.
func ActionForTarget(target Status) (Action, error) {
	switch target {
	case StatusApproved:
		return ActionAccept, nil
	case StatusCancelled:
		return ActionCancel, nil
	}
	return "", validationf("status %q cannot be set directly, expected approved or cancelled", target)
}
