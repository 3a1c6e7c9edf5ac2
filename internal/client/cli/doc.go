// Package cli is the sealbox command-line client. It runs a single command
// given on the command line, or an interactive loop when none is given.
//
// Commands:
//
//	upload [-access private|public|restricted] [-users a,b] [-limit n]
//	       [-expires 72h] [-password] [-mime type] <file>...
//	download [-password] <id>
//	meta [-password] <id>
//	delete <id>
//	dashboard
//	logs
//	alllogs
//	ping
package cli
