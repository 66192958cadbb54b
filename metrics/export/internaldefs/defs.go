package internaldefs

import (
	flareauth "github.com/flareauth/flareauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   flareauth.MetricID
	Name string
	Help string
}

// CounterDefs is the exported counter set, shared by all exporters so names
// stay consistent across backends.
var CounterDefs = []CounterDef{
	{ID: flareauth.MetricSignUpSuccess, Name: "flareauth_signup_success_total", Help: "Successful account creations."},
	{ID: flareauth.MetricSignUpDuplicate, Name: "flareauth_signup_duplicate_total", Help: "Signups rejected as duplicate identifiers."},
	{ID: flareauth.MetricSignUpFailure, Name: "flareauth_signup_failure_total", Help: "Signups failed for other reasons."},
	{ID: flareauth.MetricSignInSuccess, Name: "flareauth_signin_success_total", Help: "Direct sign-ins from trusted devices."},
	{ID: flareauth.MetricSignInFailure, Name: "flareauth_signin_failure_total", Help: "Rejected credentials."},
	{ID: flareauth.MetricStepUpRequired, Name: "flareauth_stepup_required_total", Help: "Sign-ins diverted into step-up verification."},
	{ID: flareauth.MetricStepUpSuccess, Name: "flareauth_stepup_success_total", Help: "Completed step-up verifications."},
	{ID: flareauth.MetricStepUpFailure, Name: "flareauth_stepup_failure_total", Help: "Step-up code mismatches."},
	{ID: flareauth.MetricStepUpExpired, Name: "flareauth_stepup_expired_total", Help: "Challenges expired before verification."},
	{ID: flareauth.MetricStepUpExhausted, Name: "flareauth_stepup_exhausted_total", Help: "Challenges that spent their attempt budget."},
	{ID: flareauth.MetricEmailVerificationRequest, Name: "flareauth_email_verification_request_total", Help: "Queued email-verification messages."},
	{ID: flareauth.MetricEmailVerificationConfirm, Name: "flareauth_email_verification_confirm_total", Help: "Confirmed email addresses."},
	{ID: flareauth.MetricEmailAlreadyVerified, Name: "flareauth_email_already_verified_total", Help: "Idempotent re-confirmations of verified addresses."},
	{ID: flareauth.MetricPasswordResetRequest, Name: "flareauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: flareauth.MetricPasswordResetConfirm, Name: "flareauth_password_reset_confirm_total", Help: "Completed password resets."},
	{ID: flareauth.MetricPasswordChange, Name: "flareauth_password_change_total", Help: "Completed password changes."},
	{ID: flareauth.MetricNotifyEnqueued, Name: "flareauth_notify_enqueued_total", Help: "Queued notification tasks."},
	{ID: flareauth.MetricNotifyDeduplicated, Name: "flareauth_notify_deduplicated_total", Help: "Enqueues collapsed by idempotency key."},
}
