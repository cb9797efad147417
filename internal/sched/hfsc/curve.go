package hfsc

import "github.com/gopakumarce/r2/internal/msg"

const (
	smShift   = 24
	ismShift  = 10
	smMask    = (1 << smShift) - 1
	ismMask   = (1 << ismShift) - 1
	htInfinity = ^uint64(0)
	hfscFreq  = 1_000_000_000
)

// internalSc is a service curve converted to the fixed-point
// bytes-per-nanosecond representation used for the runtime math.
type internalSc struct {
	sm1, ism1 uint64
	dx, dy    uint64
	sm2, ism2 uint64
}

// runtimeSc is an internalSc anchored at a particular (x, y) origin, the
// point in time/bytes the curve started running from.
type runtimeSc struct {
	x, y      uint64
	sm1, ism1 uint64
	dx, dy    uint64
	sm2, ism2 uint64
}

// segX2Y computes y = x*sm >> smShift, splitting the multiply across the
// high and low bits of x to avoid u64 overflow for large x.
func segX2Y(x, sm uint64) uint64 {
	return (x>>smShift)*sm + (((x & smMask) * sm) >> smShift)
}

// segY2X is segX2Y's inverse, in terms of the inverse slope ism.
func segY2X(y, ism uint64) uint64 {
	if y == 0 {
		return 0
	}
	if ism == htInfinity {
		return htInfinity
	}
	return (y>>ismShift)*ism + (((y & ismMask) * ism) >> ismShift)
}

// m2sm converts a slope in bits/sec to the fixed-point bytes/nanosecond
// slope used internally.
func m2sm(m uint64) uint64 {
	return (m << smShift) / 8 / hfscFreq
}

// m2ism is m2sm's reciprocal, saturating to htInfinity for a zero slope.
func m2ism(m uint64) uint64 {
	if m == 0 {
		return htInfinity
	}
	return (hfscFreq << ismShift) * 8 / m
}

// d2dx converts a segment boundary in milliseconds to nanoseconds.
func d2dx(d uint64) uint64 {
	return (d * hfscFreq) / 1000
}

func sc2isc(sc msg.Sc) internalSc {
	return internalSc{
		sm1: m2sm(sc.M1),
		ism1: m2ism(sc.M1),
		dx:  d2dx(sc.D),
		dy:  segX2Y(d2dx(sc.D), m2sm(sc.M1)),
		sm2: m2sm(sc.M2),
		ism2: m2ism(sc.M2),
	}
}

func runtimeInit(isc internalSc, x, y uint64) runtimeSc {
	return runtimeSc{
		x: x, y: y,
		sm1: isc.sm1, ism1: isc.ism1,
		dx: isc.dx, dy: isc.dy,
		sm2: isc.sm2, ism2: isc.ism2,
	}
}

// rtscY2X inverts the runtime curve: given elapsed bytes y, returns the
// elapsed time x the curve predicts.
func rtscY2X(rtsc runtimeSc, y uint64) uint64 {
	switch {
	case y < rtsc.y:
		return rtsc.x
	case y <= rtsc.y+rtsc.dy:
		if rtsc.dy == 0 {
			return rtsc.x + rtsc.dx
		}
		return rtsc.x + segY2X(y-rtsc.y, rtsc.ism1)
	default:
		return rtsc.x + rtsc.dx + segY2X(y-rtsc.y-rtsc.dy, rtsc.ism2)
	}
}

// rtscX2Y evaluates the runtime curve at elapsed time x, returning the
// elapsed bytes y it predicts.
func rtscX2Y(rtsc runtimeSc, x uint64) uint64 {
	switch {
	case x <= rtsc.x:
		return rtsc.y
	case x <= rtsc.x+rtsc.dx:
		return rtsc.y + segX2Y(x-rtsc.x, rtsc.sm1)
	default:
		return rtsc.y + rtsc.dy + segX2Y(x-rtsc.x-rtsc.dx, rtsc.sm2)
	}
}

// rtscMin lowers rtsc to the minimum of itself and isc anchored at
// (x, y), the HFSC curve-combination rule used whenever a class becomes
// active: a convex isc simply replaces rtsc if isc is smaller there; a
// concave isc may need rtsc replaced by a spliced curve at the
// intersection point.
func rtscMin(rtsc *runtimeSc, isc internalSc, x, y uint64) {
	if isc.sm1 <= isc.sm2 {
		y1 := rtscX2Y(*rtsc, x)
		if y1 < y {
			return
		}
		rtsc.x, rtsc.y = x, y
		return
	}

	y1 := rtscX2Y(*rtsc, x)
	if y1 <= y {
		return
	}

	y2 := rtscX2Y(*rtsc, x+isc.dx)
	if y2 >= y+isc.dy {
		rtsc.x, rtsc.y = x, y
		rtsc.dx, rtsc.dy = isc.dx, isc.dy
		return
	}

	dx := ((y1 - y) << smShift) / (isc.sm1 - isc.sm2)
	if rtsc.x+rtsc.dx > x {
		dx += rtsc.x + rtsc.dx - x
	}
	dy := segX2Y(dx, isc.sm1)

	rtsc.x, rtsc.y = x, y
	rtsc.dx, rtsc.dy = dx, dy
}
