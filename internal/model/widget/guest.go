package widget

import "time"

// Guest identifies a visitor scoped to a single widget. Records are
// immutable after creation; repeat identification with new contact
// details never rewrites an existing guest.
type Guest struct {
	ID        string    `json:"id"`
	WidgetID  string    `json:"widgetId"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
