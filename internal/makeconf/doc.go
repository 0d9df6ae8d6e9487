// Package makeconf loads shell-style KEY=VALUE configuration files of the
// make.conf shape used by source-based package managers. A file is parsed in a
// single pass into an immutable ConfigSet; assignments may use unquoted,
// single-quoted (literal) or double-quoted (interpolating) values, and `#`
// starts a comment. Double-quoted values may reference earlier keys with
// $KEY or ${KEY}, falling back to the process environment and then to the
// empty string.
package makeconf
