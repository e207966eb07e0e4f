package pio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smModel executes the subset of PIO instructions the step program uses,
// one cycle per instruction plus its delay.
type smModel struct {
	t        *testing.T
	pc       int
	x, y     uint32
	isr, osr uint32
	fifo     []uint32
	cycle    int
	step     bool
	dir      bool
	edges    []int  // cycle of every rising step edge
	edgeDirs []bool // direction pin at each edge
}

// run executes until the machine stalls on an empty FIFO
func (m *smModel) run() {
	for guard := 0; guard < 1<<20; guard++ {
		ins := stepperProgram[m.pc]
		next := m.pc + 1
		if m.pc == stepperWrapEnd {
			next = stepperWrapStart
		}
		delay := int(ins>>8) & 0x1f
		dest := (ins >> 5) & 7

		switch ins >> 13 {
		case 0: // jmp
			taken := false
			switch dest {
			case 0:
				taken = true
			case 2:
				taken = m.x != 0
				m.x--
			case 4:
				taken = m.y != 0
				m.y--
			default:
				m.t.Fatalf("jmp condition %d at %d", dest, m.pc)
			}
			if taken {
				next = int(ins & 0x1f)
			}
		case 3: // out, shifting right
			n := uint(ins & 0x1f)
			if n == 0 {
				n = 32
			}
			v := uint32(uint64(m.osr) & (1<<n - 1))
			m.osr = uint32(uint64(m.osr) >> n)
			switch dest {
			case 0:
				m.dir = v&1 != 0
			case 1:
				m.x = v
			case 2:
				m.y = v
			default:
				m.t.Fatalf("out destination %d at %d", dest, m.pc)
			}
		case 4: // pull block
			if len(m.fifo) == 0 {
				return
			}
			m.osr, m.fifo = m.fifo[0], m.fifo[1:]
		case 5: // mov
			var v uint32
			switch ins & 7 {
			case 2:
				v = m.y
			case 6:
				v = m.isr
			default:
				m.t.Fatalf("mov source %d at %d", ins&7, m.pc)
			}
			switch dest {
			case 2:
				m.y = v
			case 6:
				m.isr = v
			default:
				m.t.Fatalf("mov destination %d at %d", dest, m.pc)
			}
		case 7: // set pins
			high := ins&1 != 0
			if high && !m.step {
				m.edges = append(m.edges, m.cycle)
				m.edgeDirs = append(m.edgeDirs, m.dir)
			}
			m.step = high
		default:
			m.t.Fatalf("unexpected opcode %#04x at %d", ins, m.pc)
		}
		m.cycle += 1 + delay
		m.pc = next
	}
	m.t.Fatal("program did not stall")
}

func spacings(edges []int) []int {
	var out []int
	for i := 1; i < len(edges); i++ {
		out = append(out, edges[i]-edges[i-1])
	}
	return out
}

func TestStepperProgramSpacing(t *testing.T) {
	m := &smModel{t: t, fifo: []uint32{commandWord(5, 20, true)}}
	m.run()

	require.Len(t, m.edges, 5)
	for _, s := range spacings(m.edges) {
		assert.Equal(t, 20+pulseOverhead, s)
	}
	for _, d := range m.edgeDirs {
		assert.True(t, d)
	}
	assert.False(t, m.step)
}

func TestStepperProgramBackToBack(t *testing.T) {
	m := &smModel{t: t, fifo: []uint32{
		commandWord(3, 255, false),
		commandWord(4, 0, true),
	}}
	m.run()

	require.Len(t, m.edges, 7)
	s := spacings(m.edges)
	assert.Equal(t, []int{255 + pulseOverhead, 255 + pulseOverhead}, s[:2])
	assert.Equal(t, []int{pulseOverhead, pulseOverhead, pulseOverhead}, s[3:])
	assert.Equal(t, []bool{false, false, false, true, true, true, true}, m.edgeDirs)
}

func TestStepperProgramRate(t *testing.T) {
	for _, rate := range []float64{200, 3200, 100000} {
		div, delay, err := PulseTiming(sysHz, rate)
		require.NoError(t, err)

		m := &smModel{t: t, fifo: []uint32{commandWord(3, delay, false)}}
		m.run()
		require.Len(t, m.edges, 3)

		got := sysHz / float64(div) / float64(m.edges[1]-m.edges[0])
		assert.InDelta(t, ActualRate(sysHz, div, delay), got, 1e-6, "rate %v", rate)
	}
}

func TestStopParksOnPull(t *testing.T) {
	m := &smModel{t: t}
	// Mid-train: X and Y hold leftovers, PC inside the spacing loop
	m.pc, m.x, m.y, m.isr = 8, 1000, 17, 17

	ins := jmpTo(stepperPIOOrigin)
	require.Equal(t, uint16(0), ins>>13, "jmp opcode")
	require.Equal(t, uint16(0), (ins>>5)&7, "unconditional")
	m.pc = int(ins & 0x1f)

	m.fifo = []uint32{commandWord(2, 0, false)}
	m.run()
	require.Len(t, m.edges, 2)
	assert.Equal(t, pulseOverhead, m.edges[1]-m.edges[0])
}
