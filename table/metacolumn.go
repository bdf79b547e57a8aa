package table

// MetaColumn documents how a main file's row ordinals map onto its
// sub-column files, grounded in original_source/table/column_table_builder.cc's
// Finish(), which writes exactly this trio ({main, column_count,
// per_column_file_size}) into a dedicated meta-column block before the
// properties block.
type MetaColumn struct {
	IsMain          bool
	ColumnCount     uint64
	ColumnFileSizes []uint64
}

func (m MetaColumn) Encode() []byte {
	var buf []byte
	if m.IsMain {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = putUvarint(buf, m.ColumnCount)
	for _, sz := range m.ColumnFileSizes {
		buf = putUvarint(buf, sz)
	}
	return buf
}

func DecodeMetaColumn(data []byte) (MetaColumn, error) {
	var m MetaColumn
	if len(data) == 0 {
		return m, nil
	}
	m.IsMain = data[0] != 0
	rest := data[1:]
	var err error
	if m.ColumnCount, rest, err = getUvarint(rest); err != nil {
		return m, err
	}
	m.ColumnFileSizes = make([]uint64, 0, m.ColumnCount)
	for i := uint64(0); i < m.ColumnCount; i++ {
		var sz uint64
		if sz, rest, err = getUvarint(rest); err != nil {
			return m, err
		}
		m.ColumnFileSizes = append(m.ColumnFileSizes, sz)
	}
	return m, nil
}
