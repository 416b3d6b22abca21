package bridge

import "github.com/ftl/rigproxy/pkg/protocol"

// dumpStateResponse is the capability block hamlib clients negotiate
// with: protocol version, rig model, RX/TX ranges for 150kHz-30MHz, the
// tuning steps and filter table of a single-VFO 10W transceiver, and no
// split/scan capabilities.
var dumpStateResponse = protocol.Response{
	Command: "dump_state",
	Data: []string{`0
2
2
150000.000000 30000000.000000 0x1ff -1 -1 0x10000003 0x3
0 0 0 0 0 0 0
150000.000000 30000000.000000 0x1ff -1 -1 0x10000003 0x3
0 0 0 0 0 0 0
0 0
0 0
0x1ff 1
0x1ff 0
0 0
0x1e 2400
0x2 500
0x1 8000
0x1 2400
0x20 15000
0x20 8000
0x40 230000
0 0
9990
9990
10000
0
10
10
10000
1
1
1
0
0
0`},
	Keys:   []string{""},
	Result: "0",
}
