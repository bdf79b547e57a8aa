package table

// BlockRange records the first and last internal key written into one
// main-file data block, keyed by that block's handle offset. The primary
// index only stores a *shortened* separator between blocks, which is
// enough to route a point lookup but not precise enough to tell whether a
// block's true key range overlaps a query interval -- spec §4.2's
// projected range query needs the exact (min_key, max_key) to skip blocks
// the index alone can't rule out.
type BlockRange struct {
	Offset uint64
	MinKey []byte
	MaxKey []byte
}

func encodeBlockSummary(entries []BlockRange) []byte {
	var buf []byte
	buf = putUvarint(buf, uint64(len(entries)))
	for _, e := range entries {
		buf = putUvarint(buf, e.Offset)
		buf = putString(buf, string(e.MinKey))
		buf = putString(buf, string(e.MaxKey))
	}
	return buf
}

func decodeBlockSummary(data []byte) ([]BlockRange, error) {
	if len(data) == 0 {
		return nil, nil
	}
	n, rest, err := getUvarint(data)
	if err != nil {
		return nil, err
	}
	entries := make([]BlockRange, 0, n)
	for i := uint64(0); i < n; i++ {
		var e BlockRange
		var min, max string
		if e.Offset, rest, err = getUvarint(rest); err != nil {
			return nil, err
		}
		if min, rest, err = getString(rest); err != nil {
			return nil, err
		}
		if max, rest, err = getString(rest); err != nil {
			return nil, err
		}
		e.MinKey, e.MaxKey = []byte(min), []byte(max)
		entries = append(entries, e)
	}
	return entries, nil
}
