// Package iam provides account and session services for the forge API.
//
// The IAM service owns everything that touches credentials:
//
//   - Registration of accounts with a fixed role
//   - Login, which verifies a bcrypt digest and issues a signed session token
//   - Password changes guarded by compare-and-set on the stored digest
//   - Authentication of bearer tokens and policy checks against auth.OperationRoles
//
// Request flow:
//
//	Request → middleware.Authenticate → IAM.Authenticate(token) → auth.Claims
//	       ↓
//	   middleware.RequireOperation → IAM.Authorize(claims, op) → Casbin
//
// Sessions are stateless: the role is read from the verified token and no
// storage is consulted while authorizing. A role change therefore takes effect
// when the holder's current token expires.
package iam
