// Package cli implements the workwatch command line: attendance events,
// chain validation, daily sealing, archive auditing and monthly export.
//
// Usage
//
//	workwatch [global flags] <command> [command flags] [args]
//
// Commands
//
//	checkin, checkout, toggle, status
//	trail                     record a GPS trail point
//	prune                     drop trail points past retention
//	validate [-epoch N]       validate a chain epoch from genesis
//	report [-date D] [-print] build the daily report and seal it
//	check <file>              classify an artifact
//	open [-yes] <file>        break the seal of an archive
//	compare <a> <b>           byte-compare two artifacts
//	readable <file>           verify a readable copy
//	verify-month [-month M]   audit every sealed day of a month
//	month [-month M]          export the monthly bundle
//	close-month [-month M]    export and roll the chain epoch
package cli
