// Package auth implements authentication and authorization for the Power-Save Controller.
//
// The auth package validates bearer tokens and enforces scopes for power-save
// operations, separating read-only observation from control actions.
//
// Architecture References:
//   - Architecture §14.1: Security and privacy requirements
//   - OpenAPI §1.2: Roles and scopes
package auth
