package fiber

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"ember/intern"
	"ember/value"
	"ember/vm"

	"github.com/google/uuid"
)

// Snapshot format: an outer IFF-style chunk stream. CSOB (Console
// Snapshot Of Bindings) is the container: a version word, a 16-byte
// snapshot id (a uuid), the number of fibers, a CEOB block per fiber, then an object section (one DSOB per
// referenced codeblock, one DICT per referenced dictionary table) closed
// by an EOLB sentinel. Every chunk is {tag [4]byte, length uint32,
// payload}, so an unrecognized chunk can be skipped by length rather than
// aborting the whole read — the same defensive-forward-compatibility
// shape IFF/RIFF readers use.
const (
	tagCSOB = "CSOB"
	tagCEOB = "CEOB"
	tagCFFB = "CFFB"
	tagDICT = "DICT"
	tagDSOB = "DSOB"
	tagEOLB = "EOLB"

	snapshotVersion = 1
)

func writeChunk(w *bytes.Buffer, tag string, payload []byte) {
	w.WriteString(tag)
	binary.Write(w, binary.LittleEndian, uint32(len(payload)))
	w.Write(payload)
}

func writeString(w *bytes.Buffer, s string) {
	binary.Write(w, binary.LittleEndian, uint32(len(s)))
	w.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Serialize writes every fiber the scheduler currently knows about, plus
// the referenced-codeblock and global-dictionary object section, into the
// CSOB snapshot format described above.
func (s *Scheduler) Serialize() []byte {
	var out bytes.Buffer

	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(snapshotVersion))
	snapshotID := uuid.New()
	idBytes, _ := snapshotID.MarshalBinary()
	body.Write(idBytes)
	s.lastSnapshotID = snapshotID

	live := make([]*Fiber, 0, len(s.order))
	for _, h := range s.order {
		if f := s.table.Resolve(h); f != nil {
			live = append(live, f)
		}
	}
	binary.Write(&body, binary.LittleEndian, uint32(len(live)))

	codeNames := make(map[string]bool)
	for _, f := range live {
		ceob := serializeFiber(f)
		var chunk bytes.Buffer
		writeChunk(&chunk, tagCEOB, ceob)
		body.Write(chunk.Bytes())
		for fr := f.frame; fr != nil; fr = fr.Caller {
			codeNames[fr.Code.Name] = true
		}
	}

	for name := range codeNames {
		var dsob bytes.Buffer
		writeString(&dsob, name)
		var chunk bytes.Buffer
		writeChunk(&chunk, tagDSOB, dsob.Bytes())
		body.Write(chunk.Bytes())
	}

	var dict bytes.Buffer
	binary.Write(&dict, binary.LittleEndian, uint32(s.VM.Globals.Len()))
	s.VM.Globals.Each(func(e *value.Entry) {
		writeString(&dict, e.Name.String())
		binary.Write(&dict, binary.LittleEndian, e.Value.Payload)
		binary.Write(&dict, binary.LittleEndian, uint16(e.Value.Type))
		binary.Write(&dict, binary.LittleEndian, uint16(e.Value.Zone))
	})
	var dictChunk bytes.Buffer
	writeChunk(&dictChunk, tagDICT, dict.Bytes())
	body.Write(dictChunk.Bytes())

	var eolb bytes.Buffer
	writeChunk(&eolb, tagEOLB, nil)
	body.Write(eolb.Bytes())

	writeChunk(&out, tagCSOB, body.Bytes())
	return out.Bytes()
}

func serializeFiber(f *Fiber) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, f.ID)
	binary.Write(&buf, binary.LittleEndian, uint32(f.Slot))
	writeString(&buf, f.Name)
	binary.Write(&buf, binary.LittleEndian, uint32(f.Status))

	frames := collectFrameChain(f.frame)
	binary.Write(&buf, binary.LittleEndian, uint32(len(frames)))
	for _, fr := range frames {
		var ffb bytes.Buffer
		serializeFrame(&ffb, fr)
		var chunk bytes.Buffer
		writeChunk(&chunk, tagCFFB, ffb.Bytes())
		buf.Write(chunk.Bytes())
	}
	return buf.Bytes()
}

func collectFrameChain(fr *vm.Frame) []*vm.Frame {
	var chain []*vm.Frame
	for f := fr; f != nil; f = f.Caller {
		chain = append([]*vm.Frame{f}, chain...)
	}
	return chain
}

func serializeFrame(buf *bytes.Buffer, fr *vm.Frame) {
	writeString(buf, fr.Code.Name)
	binary.Write(buf, binary.LittleEndian, uint32(fr.IP))

	var names []string
	fr.Locals.Each(func(e *value.Entry) { names = append(names, e.Name.String()) })
	binary.Write(buf, binary.LittleEndian, uint32(len(names)))
	for _, n := range names {
		e := fr.Locals.Lookup(n)
		writeString(buf, n)
		binary.Write(buf, binary.LittleEndian, e.Value.Payload)
		binary.Write(buf, binary.LittleEndian, uint16(e.Value.Type))
		binary.Write(buf, binary.LittleEndian, uint16(e.Value.Zone))
	}

	binary.Write(buf, binary.LittleEndian, uint32(len(fr.UintStack)))
	for _, v := range fr.UintStack {
		binary.Write(buf, binary.LittleEndian, v)
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(fr.FloatStack)))
	for _, v := range fr.FloatStack {
		binary.Write(buf, binary.LittleEndian, v)
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(fr.StrStack)))
	for _, v := range fr.StrStack {
		writeString(buf, v)
	}
}

// RemapZone rewrites a restored Value whose Zone encodes a fiber's string-
// stack slot (value.ZoneFuncBase + old index) to point at that fiber's new
// slot, using the old-index -> new-index table Restore builds as it
// reinserts fibers into a (possibly already-populated) scheduler. A Value
// whose zone isn't fiber-relative passes through unchanged.
func RemapZone(v value.Value, oldToNew map[int]int) value.Value {
	slot, ok := v.FiberSlot()
	if !ok {
		return v
	}
	newSlot, ok := oldToNew[slot]
	if !ok {
		return v
	}
	v.Zone = value.FuncZone(newSlot)
	return v
}

// Restore rebuilds fibers from a CSOB snapshot, binding each frame to its
// codeblock by name via lookupCode. lookupCode resolves a CodeBlock.Name back
// to its live *vm.CodeBlock (the embedder's responsibility, since a
// snapshot records source identity, not bytecode bytes).
func (s *Scheduler) Restore(data []byte, lookupCode func(name string) *vm.CodeBlock) error {
	r := bytes.NewReader(data)
	tag, payload, err := readChunk(r)
	if err != nil {
		return err
	}
	if tag != tagCSOB {
		return fmt.Errorf("fiber: expected CSOB chunk, got %q", tag)
	}
	pr := bytes.NewReader(payload)

	var version, count uint32
	if err := binary.Read(pr, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != snapshotVersion {
		return fmt.Errorf("fiber: unsupported snapshot version %d", version)
	}
	idBytes := make([]byte, 16)
	if _, err := io.ReadFull(pr, idBytes); err != nil {
		return err
	}
	var snapshotID uuid.UUID
	if err := snapshotID.UnmarshalBinary(idBytes); err != nil {
		return fmt.Errorf("fiber: malformed snapshot id: %w", err)
	}
	s.lastSnapshotID = snapshotID
	if err := binary.Read(pr, binary.LittleEndian, &count); err != nil {
		return err
	}

	oldToNew := make(map[int]int, count)
	for i := uint32(0); i < count; i++ {
		ftag, fpayload, err := readChunk(pr)
		if err != nil {
			return err
		}
		if ftag != tagCEOB {
			return fmt.Errorf("fiber: expected CEOB chunk, got %q", ftag)
		}
		oldSlot, newSlot, err := s.restoreFiber(fpayload, lookupCode)
		if err != nil {
			return err
		}
		oldToNew[oldSlot] = newSlot
	}
	for _, h := range s.order {
		if f := s.table.Resolve(h); f != nil {
			remapFrameChain(f.frame, oldToNew)
		}
	}

	// Object section: zero or more DSOB (referenced codeblock name, read
	// and not checked) and DICT (restored global dictionary) chunks,
	// terminated by EOLB. Unrecognized chunk tags here are skipped by
	// length; the fiber list above instead rejects any chunk that is not
	// CEOB.
	for {
		tag, payload, err := readChunk(pr)
		if err != nil {
			return err
		}
		switch tag {
		case tagEOLB:
			return nil
		case tagDICT:
			if err := s.restoreGlobals(payload); err != nil {
				return err
			}
		case tagDSOB:
			// Codeblock identity only; frames were already bound to their
			// blocks through lookupCode above.
		default:
			// forward-compatible: skip unknown chunk kinds
		}
	}
}

func (s *Scheduler) restoreGlobals(data []byte) error {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return err
		}
		var payload uint64
		var typ, zone uint16
		if err := binary.Read(r, binary.LittleEndian, &payload); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &zone); err != nil {
			return err
		}
		ste := s.VM.Interner.Intern(name, false)
		entry := s.VM.Globals.Create(ste)
		entry.Value = value.Value{Payload: payload, Type: value.TypeID(typ), Zone: value.Zone(zone)}
	}
	return nil
}

func readChunk(r *bytes.Reader) (string, []byte, error) {
	tagBytes := make([]byte, 4)
	if _, err := io.ReadFull(r, tagBytes); err != nil {
		return "", nil, err
	}
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", nil, err
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, err
	}
	return string(tagBytes), payload, nil
}

// restoreFiber rebuilds one fiber and returns its pre-snapshot slot index
// alongside the freshly-allocated one, so Restore can build the old-index
// -> new-index table RemapZone needs.
func (s *Scheduler) restoreFiber(data []byte, lookupCode func(name string) *vm.CodeBlock) (oldSlot, newSlot int, err error) {
	r := bytes.NewReader(data)
	var id uint64
	if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
		return 0, 0, err
	}
	var savedSlot uint32
	if err := binary.Read(r, binary.LittleEndian, &savedSlot); err != nil {
		return 0, 0, err
	}
	name, err := readString(r)
	if err != nil {
		return 0, 0, err
	}
	var status uint32
	if err := binary.Read(r, binary.LittleEndian, &status); err != nil {
		return 0, 0, err
	}
	var frameCount uint32
	if err := binary.Read(r, binary.LittleEndian, &frameCount); err != nil {
		return 0, 0, err
	}

	var outer *vm.Frame
	for i := uint32(0); i < frameCount; i++ {
		tag, payload, err := readChunk(r)
		if err != nil {
			return 0, 0, err
		}
		if tag != tagCFFB {
			return 0, 0, fmt.Errorf("fiber: expected CFFB chunk, got %q", tag)
		}
		fr, err := restoreFrame(payload, outer, lookupCode, s.VM.Interner)
		if err != nil {
			return 0, 0, err
		}
		outer = fr
	}

	f := New(id, 0, name, s.VM, outer)
	f.Status = Status(status)
	h := s.table.Alloc(f)
	f.Slot = h.Index()
	if outer != nil {
		outer.FiberSlot = f.Slot
	}
	s.order = append(s.order, h)
	return int(savedSlot), f.Slot, nil
}

// remapFrameChain fixes up every local variable binding in fr and its
// callers whose Value references a fiber's string-stack slot (the only
// place a restored ConsoleValue can carry a fiber-relative Zone; the
// UintStack/FloatStack/StrStack are plain operand words, not tagged
// values, so they need no remapping).
func remapFrameChain(fr *vm.Frame, oldToNew map[int]int) {
	for f := fr; f != nil; f = f.Caller {
		f.Locals.Each(func(e *value.Entry) {
			e.Value = RemapZone(e.Value, oldToNew)
		})
	}
}

func restoreFrame(data []byte, caller *vm.Frame, lookupCode func(name string) *vm.CodeBlock, in *intern.Interner) (*vm.Frame, error) {
	r := bytes.NewReader(data)
	codeName, err := readString(r)
	if err != nil {
		return nil, err
	}
	code := lookupCode(codeName)
	if code == nil {
		return nil, fmt.Errorf("fiber: unresolvable codeblock %q", codeName)
	}
	var ip uint32
	if err := binary.Read(r, binary.LittleEndian, &ip); err != nil {
		return nil, err
	}
	fr := vm.NewFrame(code, caller, 0)
	fr.IP = int(ip)

	var nlocals uint32
	if err := binary.Read(r, binary.LittleEndian, &nlocals); err != nil {
		return nil, err
	}
	for i := uint32(0); i < nlocals; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var payload uint64
		var typ, zone uint16
		binary.Read(r, binary.LittleEndian, &payload)
		binary.Read(r, binary.LittleEndian, &typ)
		binary.Read(r, binary.LittleEndian, &zone)

		ste := in.Intern(name, false)
		entry := fr.Locals.Create(ste)
		entry.Value = value.Value{Payload: payload, Type: value.TypeID(typ), Zone: value.Zone(zone)}
	}

	var nuint uint32
	binary.Read(r, binary.LittleEndian, &nuint)
	for i := uint32(0); i < nuint; i++ {
		var v uint64
		binary.Read(r, binary.LittleEndian, &v)
		fr.UintStack = append(fr.UintStack, v)
	}
	var nfloat uint32
	binary.Read(r, binary.LittleEndian, &nfloat)
	for i := uint32(0); i < nfloat; i++ {
		var v float64
		binary.Read(r, binary.LittleEndian, &v)
		fr.FloatStack = append(fr.FloatStack, v)
	}
	var nstr uint32
	binary.Read(r, binary.LittleEndian, &nstr)
	for i := uint32(0); i < nstr; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		fr.StrStack = append(fr.StrStack, s)
	}

	return fr, nil
}
