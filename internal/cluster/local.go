package cluster

import (
	"runtime"

	"github.com/jolatechno/iqs/internal/transport"
)

// world is the shared collective-state object every rank's LocalCommunicator
// points into, the in-process stand-in for an MPI communicator's group.
type world struct {
	size int
	bar  *barrier

	// Staged per-round inputs/outputs. Safe to reuse across rounds because
	// the barrier fully drains (every rank has read the previous round's
	// result) before the next round's Enter calls can proceed, as every
	// rank is a sequential caller that reads immediately after its own
	// Enter returns.
	reduceIn  []uint64
	reduceOut uint64

	gatherIn  [][]uint64
	gatherOut []uint64

	gatherScalarIn  []uint64
	gatherScalarOut []uint64

	bcastData []int

	a2aSendCounts [][]int
	a2aSendBuf    [][]byte
	a2aRecvCounts [][]int
	a2aRecvBuf    [][]byte

	// pairBuf[i][j] is the inbox rank j reads messages sent by rank i
	// through.
	pairBuf [][]*transport.RingBuffer[[]byte]
}

func newWorld(size int) *world {
	w := &world{
		size:           size,
		bar:            newBarrier(size),
		reduceIn:       make([]uint64, size),
		gatherIn:       make([][]uint64, size),
		gatherScalarIn: make([]uint64, size),
		a2aSendCounts:  make([][]int, size),
		a2aSendBuf:     make([][]byte, size),
		a2aRecvCounts:  make([][]int, size),
		a2aRecvBuf:     make([][]byte, size),
		pairBuf:        make([][]*transport.RingBuffer[[]byte], size),
	}
	for i := 0; i < size; i++ {
		w.pairBuf[i] = make([]*transport.RingBuffer[[]byte], size)
		for j := 0; j < size; j++ {
			q, _ := transport.NewRingBuffer[[]byte](16)
			w.pairBuf[i][j] = q
		}
	}
	return w
}

// LocalCommunicator implements Communicator by running every rank as a
// goroutine within the current process, synchronized through a shared
// barrier and the adapted ring-buffer transport for point-to-point sends.
type LocalCommunicator struct {
	w    *world
	rank int
}

// NewLocalCluster returns size LocalCommunicators sharing one world, ready
// to be handed one per rank goroutine. size==1 is legal; every collective
// degenerates to a local no-op.
func NewLocalCluster(size int) []*LocalCommunicator {
	if size < 1 {
		size = 1
	}
	w := newWorld(size)
	comms := make([]*LocalCommunicator, size)
	for r := 0; r < size; r++ {
		comms[r] = &LocalCommunicator{w: w, rank: r}
	}
	return comms
}

func (c *LocalCommunicator) Rank() int { return c.rank }
func (c *LocalCommunicator) Size() int { return c.w.size }

func (c *LocalCommunicator) AllReduceSum(local uint64) uint64 {
	w := c.w
	w.reduceIn[c.rank] = local
	w.bar.Enter(func() {
		var sum uint64
		for _, v := range w.reduceIn {
			sum += v
		}
		w.reduceOut = sum
	})
	return w.reduceOut
}

func (c *LocalCommunicator) Reduce(local []uint64, root int) []uint64 {
	w := c.w
	w.gatherIn[c.rank] = local
	w.bar.Enter(func() {
		width := 0
		for _, v := range w.gatherIn {
			if len(v) > width {
				width = len(v)
			}
		}
		out := make([]uint64, width)
		for _, v := range w.gatherIn {
			for i, x := range v {
				out[i] += x
			}
		}
		w.gatherOut = out
	})
	if c.rank != root {
		return nil
	}
	result := make([]uint64, len(w.gatherOut))
	copy(result, w.gatherOut)
	return result
}

func (c *LocalCommunicator) Gather(local uint64, root int) []uint64 {
	w := c.w
	w.gatherScalarIn[c.rank] = local
	w.bar.Enter(func() {
		out := make([]uint64, w.size)
		copy(out, w.gatherScalarIn)
		w.gatherScalarOut = out
	})
	if c.rank != root {
		return nil
	}
	result := make([]uint64, len(w.gatherScalarOut))
	copy(result, w.gatherScalarOut)
	return result
}

func (c *LocalCommunicator) Broadcast(data []int, root int) []int {
	w := c.w
	if c.rank == root {
		w.bcastData = data
	}
	w.bar.Enter(nil)
	result := make([]int, len(w.bcastData))
	copy(result, w.bcastData)
	// Root stages its data before entering, so a second rendezvous keeps it
	// from overwriting bcastData for the next Broadcast while another rank
	// is still copying this one.
	w.bar.Enter(nil)
	return result
}

func (c *LocalCommunicator) AllToAll(sendCounts []int, send []byte) (recvCounts []int, recv []byte) {
	w := c.w
	w.a2aSendCounts[c.rank] = sendCounts
	w.a2aSendBuf[c.rank] = send
	w.bar.Enter(func() {
		size := w.size
		for dst := 0; dst < size; dst++ {
			counts := make([]int, size)
			var total int
			offsets := make([]int, size)
			for src := 0; src < size; src++ {
				srcCounts := w.a2aSendCounts[src]
				if dst < len(srcCounts) {
					counts[src] = srcCounts[dst]
				}
				total += counts[src]
			}
			buf := make([]byte, total)
			pos := 0
			for src := 0; src < size; src++ {
				offsets[src] = sendOffset(w.a2aSendCounts[src], dst)
				n := counts[src]
				if n > 0 {
					copy(buf[pos:pos+n], w.a2aSendBuf[src][offsets[src]:offsets[src]+n])
				}
				pos += n
			}
			w.a2aRecvCounts[dst] = counts
			w.a2aRecvBuf[dst] = buf
		}
	})
	return w.a2aRecvCounts[c.rank], w.a2aRecvBuf[c.rank]
}

func sendOffset(counts []int, dst int) int {
	off := 0
	for i := 0; i < dst && i < len(counts); i++ {
		off += counts[i]
	}
	return off
}

func (c *LocalCommunicator) Send(node int, payload []byte) {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	for !c.w.pairBuf[c.rank][node].Enqueue(buf) {
		runtime.Gosched()
	}
}

func (c *LocalCommunicator) Recv(node int) []byte {
	buf, _ := c.w.pairBuf[node][c.rank].Dequeue()
	return buf
}

// TryRecv is the non-blocking counterpart to Recv: ok is false if node has
// not sent anything yet, rather than blocking until it does.
func (c *LocalCommunicator) TryRecv(node int) (data []byte, ok bool) {
	return c.w.pairBuf[node][c.rank].TryDequeue()
}

// Close tears this rank down: every inbox it sends into is closed, so any
// peer blocked in Recv/Dequeue against it drains what's pending and then
// returns instead of blocking forever. Callers drive a rank's lifecycle
// (SimulateDistributed calls are theirs to sequence), so Close is theirs
// to call once a rank's goroutine is done sending, the way a real MPI
// rank calls MPI_Finalize before exiting.
func (c *LocalCommunicator) Close() {
	for dst := 0; dst < c.w.size; dst++ {
		c.w.pairBuf[c.rank][dst].Close()
	}
}

// CloseLocalCluster closes every rank's outgoing inboxes, the teardown
// counterpart to NewLocalCluster for callers done with a cluster.
func CloseLocalCluster(comms []*LocalCommunicator) {
	for _, c := range comms {
		c.Close()
	}
}
