package snowflake

import (
	"errors"
	"strconv"
	"sync"
	"time"
)

const (
	// Epoch is 2024-01-01T00:00:00Z in milliseconds
	Epoch int64 = 1704067200000

	// NodeBits holds the number of bits to use for Node
	NodeBits uint8 = 10

	// StepBits holds the number of bits to use for Step
	StepBits uint8 = 12

	nodeMask  = -1 ^ (-1 << NodeBits)
	stepMask  = -1 ^ (-1 << StepBits)
	timeShift = NodeBits + StepBits
	nodeShift = StepBits
)

// ErrInvalidNode is returned for a node id outside [0, 1023]
var ErrInvalidNode = errors.New("invalid node ID")

// IDGenerator ID generator using snowflake algorithm
type IDGenerator struct {
	mu        sync.Mutex
	timestamp int64
	nodeID    int64
	step      int64
	now       func() int64
}

// NewIDGenerator creates a new ID generator
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	if nodeID < 0 || nodeID > nodeMask {
		return nil, ErrInvalidNode
	}

	return &IDGenerator{
		nodeID: nodeID,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID generates a new ID. IDs from one generator strictly increase, even
// if the wall clock steps backwards.
func (g *IDGenerator) NextID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now < g.timestamp {
		now = g.timestamp
	}

	if g.timestamp == now {
		g.step = (g.step + 1) & stepMask
		if g.step == 0 {
			// sequence exhausted, move to the next millisecond
			for now <= g.timestamp {
				now = g.now()
				if now < g.timestamp {
					now = g.timestamp + 1
				}
			}
		}
	} else {
		g.step = 0
	}

	g.timestamp = now

	return ((now - Epoch) << timeShift) |
		(g.nodeID << nodeShift) |
		g.step
}

// Next returns the next ID in decimal form with prefix prepended
func (g *IDGenerator) Next(prefix string) string {
	return prefix + strconv.FormatInt(g.NextID(), 10)
}

// ParseID parses an ID to extract timestamp, node ID and step
func ParseID(id int64) (timestamp int64, nodeID int64, step int64) {
	step = id & stepMask
	nodeID = (id >> nodeShift) & nodeMask
	timestamp = (id >> timeShift) + Epoch
	return
}

// GetTimestamp returns the timestamp part of an ID
func GetTimestamp(id int64) int64 {
	return (id >> timeShift) + Epoch
}
