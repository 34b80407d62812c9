// Package credentials implements local (password) authentication material:
// bcrypt password hashes and one-time reset tokens, one credential row per
// user per auth provider.
//
// A credential row holds either an operative password hash or an outstanding
// temp token; setting a password always clears any temp token.
package credentials
