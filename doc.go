// Package auth implements email and password accounts backed by Bun.
//
// Account workflow:
//   - Signup stores an unverified user with a bcrypt password hash, a
//     gravatar default avatar and a single use verification token, then
//     mails a link that consumes the token.
//   - Verify flips the account to verified and clears the token. A
//     verified account can no longer request a new verification email.
//   - Signin issues an HS256 session token and stores it on the user. The
//     stored value is the only live session, so signing in again or
//     signing out revokes earlier tokens before they expire.
//   - UpdateAvatar resizes an upload to a square and hands it to an
//     AvatarStore (local public dir or S3).
//
// Account state:
//   - CurrentState derives unverified, verified or signed_in from the
//     persisted fields. NextState holds the allowed transitions and every
//     workflow checks it before touching the store.
//
// HTTP:
//   - RegisterAuthRoutes mounts the workflow on a go-router router.
//     RouteAuthenticator.ProtectedRoute guards the session routes and
//     ErrorHandler renders every failure as {"message": "..."}.
//
// Activity sinks:
//   - ActivitySink receives signup, verification, login, logout and avatar
//     events. Sinks run best effort (errors are logged) so they never block
//     a request.
package auth
