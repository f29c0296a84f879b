package consolidate

// DefaultTolerance is the maximum absolute deviation from zero that a pair's
// net internal balance may show before it is reported as a mismatch. It
// absorbs floating-point summation noise; it is an absolute bound, not a
// relative one.
const DefaultTolerance = 0.01
