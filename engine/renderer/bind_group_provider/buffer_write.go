package bind_group_provider

import "fmt"

// BufferWrite describes a single buffer write targeting a specific binding of a BindGroupProvider.
type BufferWrite struct {
	Provider BindGroupProvider
	Binding  uint32
	Data     []byte
}

// ApplyWrites performs a batch of writes in order, skipping writes whose bytes match the previous write to the same
// buffer.
//
// Parameters:
//   - writes: the writes to perform
//
// Returns:
//   - int: the number of device writes issued
//   - error: the first failing write, naming its provider
func ApplyWrites(writes []BufferWrite) (int, error) {
	issued := 0
	for i, w := range writes {
		ok, err := w.Provider.WriteIfChanged(w.Binding, w.Data)
		if err != nil {
			return issued, fmt.Errorf("write %d to %q: %w", i, w.Provider.Label(), err)
		}
		if ok {
			issued++
		}
	}
	return issued, nil
}
