package ids

import (
	"strconv"
	"sync"
	"time"
)

// Session and entity ids are snowflakes: millisecond timestamp since the
// service epoch, a node part and a per-millisecond sequence. The
// timestamp+sequence pair keeps ids process-unique and never reused, even
// across restarts.
const (
	nodeBits = 10
	seqBits  = 12

	maxNodeID = (1 << nodeBits) - 1
	seqMask   = (1 << seqBits) - 1
	tsMask    = (1 << 41) - 1

	nodeShift = seqBits
	tsShift   = nodeBits + seqBits
)

// serviceEpoch is the id zero point; 41 timestamp bits from here keep ids
// positive for roughly 69 years.
var serviceEpoch = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

type generator struct {
	mu     sync.Mutex
	nodeID int64
	seq    int64
	lastMS int64
}

var defaultGen = &generator{nodeID: 1}

// Generate returns a new snowflake id.
func Generate() int64 {
	return defaultGen.next()
}

// GenerateString returns a new snowflake id in decimal string form, the
// shape used for session ids on the wire.
func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

// SetNodeID sets the node part (0~1023); call once from main() before any
// Generate. Out-of-range values fall back to node 1.
func SetNodeID(nodeID int64) {
	if nodeID < 0 || nodeID > maxNodeID {
		nodeID = 1
	}
	defaultGen.nodeID = nodeID
}

func (g *generator) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	for {
		now := time.Now().UnixMilli()
		if now < g.lastMS {
			// clock went backwards, wait it out
			time.Sleep(time.Duration(g.lastMS-now) * time.Millisecond)
			continue
		}
		if now == g.lastMS {
			g.seq = (g.seq + 1) & seqMask
			if g.seq == 0 {
				// sequence exhausted for this millisecond, spin to the next
				for now <= g.lastMS {
					now = time.Now().UnixMilli()
				}
			}
		} else {
			g.seq = 0
		}
		g.lastMS = now

		ts := (now - serviceEpoch) & tsMask
		return ts<<tsShift | g.nodeID<<nodeShift | g.seq
	}
}
