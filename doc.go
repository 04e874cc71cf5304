/*
R9CTL polls a lock-in amplifier attached to an RHK R9 STM controller over
plain TCP and logs the replies. It can also queue bias-sweep scan jobs and
acquire a reading per frame.

Command-line Flags:

	-server=169.254.11.17:50000

Address of the instrument. The default is the link-local endpoint the
controller exposes on a direct connection.

	-command="X."

Query written each poll. A newline terminator is appended on the wire.

	-interval=1s

Time between polls.

	-count=-1

Number of readings to take, -1 for no limit.

	-single=false

Take exactly one reading and exit.

	-duration=0

Sets time to receive for, 0 for infinite. Exiting after an expired duration
will print the total runtime to the log.

	-format="plain"

Sets the reading output format: plain, csv, json or xml. Plain text is
formatted using the following format string:

	{Time:%s Addr:%s Reply:%q}

	-config=""

Path to a yaml configuration file. Flags set on the command line override
values from the file. Scan jobs can only be defined in the file; when any
are present they run instead of the poll loop.

	-simulate=false

Serve an in-process simulated instrument and poll it instead of the
configured address.

Every flag may also be set through an environment variable named
R9CTL_<UPPERCASE FLAG NAME>; explicit flags win.
*/
package main
