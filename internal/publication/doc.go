// Package publication validates rendered clips against platform constraints
// and hands them off for delivery. Constraint violations are permanent;
// delivery failures are retriable.
package publication
