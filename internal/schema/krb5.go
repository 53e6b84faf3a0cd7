//go:build !windows

package schema

// Registers the krb5 authenticator selected by KerberosConfig.
import _ "github.com/microsoft/go-mssqldb/integratedauth/krb5"
