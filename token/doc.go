// Package token issues and validates purpose-bound signed tokens (access,
// email-verification, password-reset) using configured signing keys.
//
// Tokens are stateless: possession of a valid token of the right purpose is
// the only authorization check for verification and reset flows. There is no
// revocation list; short TTLs are the sole mitigation, which is a documented
// limitation of the engine rather than a defect of this package.
package token
