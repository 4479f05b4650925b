package particle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/decker502/aloparticles/internal/chunk"
)

// Emitter chunk types.
const (
	chunkEmitterProperties = 0x0002
	chunkColorTexture      = 0x0003
	chunkEmitterName       = 0x0016
	chunkGroups            = 0x0029
	chunkGroup             = 0x1100
	chunkGroupData         = 0x1101
	chunkTracks            = 0x0001
	chunkTrackHeader       = 0x0000
	chunkTrackKeys         = 0x0001
	chunkChildren          = 0x0036
	chunkNormalTexture     = 0x0045

	miniTrackFirst  = 0x02
	miniTrackLast   = 0x03
	miniTrackInterp = 0x04
	miniTrackKey    = 0x05
	miniDeathChild  = 0x37
	miniLifeChild   = 0x39

	noneIndex = 0xFFFFFFFF
)

type readState struct {
	useLinkStrength bool
}

// property binds one mini chunk of the property block to an EmitterDef field.
type property struct {
	id    uint8
	read  func(e *EmitterDef, r *chunk.Reader, st *readState) error
	write func(e *EmitterDef, w *chunk.Writer) error
}

func boolProperty(id uint8, field func(e *EmitterDef) *bool) property {
	return property{
		id: id,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) (err error) {
			*field(e), err = readBool(r)
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error { return w.WriteMiniBool(id, *field(e)) },
	}
}

func floatProperty(id uint8, field func(e *EmitterDef) *float32) property {
	return property{
		id: id,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) (err error) {
			*field(e), err = readFloat(r)
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error { return w.WriteMiniFloat32(id, *field(e)) },
	}
}

func negatedProperty(id uint8, field func(e *EmitterDef) *float32) property {
	return property{
		id: id,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) error {
			v, err := readFloat(r)
			*field(e) = -v
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error { return w.WriteMiniFloat32(id, -*field(e)) },
	}
}

func uintProperty(id uint8, field func(e *EmitterDef) *uint32) property {
	return property{
		id: id,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) (err error) {
			*field(e), err = readUint(r)
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error { return w.WriteMiniUint32(id, *field(e)) },
	}
}

func vectorProperty(id uint8, field func(e *EmitterDef) []float32) property {
	return property{
		id:   id,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) error { return readFloats(r, field(e)) },
		write: func(e *EmitterDef, w *chunk.Writer) error {
			if err := w.BeginMiniChunk(id); err != nil {
				return err
			}
			for _, v := range field(e) {
				if err := w.WriteFloat32(v); err != nil {
					return err
				}
			}
			return w.EndChunk()
		},
	}
}

// emitterProperties lists the property block in write order.
var emitterProperties = []property{
	{
		id: 0x04,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) error {
			v, err := readUint(r)
			e.BlendMode = v % NumBlendModes
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error { return w.WriteMiniUint32(0x04, e.BlendMode) },
	},
	{
		id: 0x05,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) error {
			v, err := readUint(r)
			e.NumTriangles = v + 1
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error {
			return w.WriteMiniUint32(0x05, max(1, e.NumTriangles)-1)
		},
	},
	uintProperty(0x06, func(e *EmitterDef) *uint32 { return &e.Unknown06 }),
	boolProperty(0x07, func(e *EmitterDef) *bool { return &e.UseBursts }),
	{
		id: 0x43,
		read: func(_ *EmitterDef, r *chunk.Reader, st *readState) (err error) {
			st.useLinkStrength, err = readBool(r)
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error {
			return w.WriteMiniBool(0x43, e.ParentLinkStrength != 0)
		},
	},
	boolProperty(0x08, func(e *EmitterDef) *bool { return &e.LinkToSystem }),
	negatedProperty(0x09, func(e *EmitterDef) *float32 { return &e.InwardSpeed }),
	vectorProperty(0x0A, func(e *EmitterDef) []float32 { return e.Acceleration[:] }),
	floatProperty(0x0C, func(e *EmitterDef) *float32 { return &e.Gravity }),
	floatProperty(0x0F, func(e *EmitterDef) *float32 { return &e.Lifetime }),
	floatProperty(0x12, func(e *EmitterDef) *float32 { return &e.RandomScalePerc }),
	floatProperty(0x13, func(e *EmitterDef) *float32 { return &e.RandomLifetimePerc }),
	uintProperty(0x49, func(e *EmitterDef) *uint32 { return &e.Unknown49 }),
	uintProperty(0x10, func(e *EmitterDef) *uint32 { return &e.TextureSize }),
	floatProperty(0x11, func(e *EmitterDef) *float32 { return &e.Unknown11 }),
	{
		// The stored index is recomputed from the position on load.
		id: 0x14,
		read: func(_ *EmitterDef, r *chunk.Reader, _ *readState) error {
			_, err := readUint(r)
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error { return w.WriteMiniUint32(0x14, uint32(e.Index)) },
	},
	boolProperty(0x15, func(e *EmitterDef) *bool { return &e.Unknown15 }),
	{
		id: 0x17,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) error {
			v, err := readFloat(r)
			e.RandomRotationVariance = abs32(v)
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error {
			v := e.RandomRotationVariance
			if e.RandomRotation {
				v *= 1 + e.RandomRotationAverage
			}
			return w.WriteMiniFloat32(0x17, abs32(v))
		},
	},
	negatedProperty(0x0B, func(e *EmitterDef) *float32 { return &e.InwardAcceleration }),
	boolProperty(0x23, func(e *EmitterDef) *bool { return &e.RandomRotationDirection }),
	floatProperty(0x24, func(e *EmitterDef) *float32 { return &e.InitialDelay }),
	floatProperty(0x25, func(e *EmitterDef) *float32 { return &e.BurstDelay }),
	uintProperty(0x26, func(e *EmitterDef) *uint32 { return &e.ParticlesPerBurst }),
	{
		id: 0x27,
		read: func(e *EmitterDef, r *chunk.Reader, _ *readState) error {
			v, err := readUint(r)
			if v == noneIndex {
				v = 0
			}
			e.NumBursts = v
			return err
		},
		write: func(e *EmitterDef, w *chunk.Writer) error {
			v := e.NumBursts
			if v == 0 {
				v = noneIndex
			}
			return w.WriteMiniUint32(0x27, v)
		},
	},
	floatProperty(0x28, func(e *EmitterDef) *float32 { return &e.ParentLinkStrength }),
	uintProperty(0x2A, func(e *EmitterDef) *uint32 { return &e.ParticlesPerSecond }),
	boolProperty(0x2B, func(e *EmitterDef) *bool { return &e.Unknown2B }),
	vectorProperty(0x2C, func(e *EmitterDef) []float32 { return e.RandomColors[:] }),
	boolProperty(0x2D, func(e *EmitterDef) *bool { return &e.DoColorAddGrayscale }),
	boolProperty(0x2E, func(e *EmitterDef) *bool { return &e.IsWorldOriented }),
	uintProperty(0x2F, func(e *EmitterDef) *uint32 { return &e.GroundBehavior }),
	floatProperty(0x30, func(e *EmitterDef) *float32 { return &e.Bounciness }),
	boolProperty(0x31, func(e *EmitterDef) *bool { return &e.AffectedByWind }),
	floatProperty(0x32, func(e *EmitterDef) *float32 { return &e.FreezeTime }),
	floatProperty(0x33, func(e *EmitterDef) *float32 { return &e.SkipTime }),
	uintProperty(0x34, func(e *EmitterDef) *uint32 { return &e.EmitFromMesh }),
	boolProperty(0x35, func(e *EmitterDef) *bool { return &e.ObjectSpaceAcceleration }),
	boolProperty(0x3B, func(e *EmitterDef) *bool { return &e.IsHeatParticle }),
	floatProperty(0x3C, func(e *EmitterDef) *float32 { return &e.EmitFromMeshOffset }),
	boolProperty(0x3D, func(e *EmitterDef) *bool { return &e.IsWeatherParticle }),
	floatProperty(0x3E, func(e *EmitterDef) *float32 { return &e.WeatherCubeSize }),
	floatProperty(0x3F, func(e *EmitterDef) *float32 { return &e.Unknown3F }),
	floatProperty(0x40, func(e *EmitterDef) *float32 { return &e.WeatherFadeoutDistance }),
	boolProperty(0x41, func(e *EmitterDef) *bool { return &e.HasTail }),
	floatProperty(0x42, func(e *EmitterDef) *float32 { return &e.TailSize }),
	boolProperty(0x44, func(e *EmitterDef) *bool { return &e.Unknown44 }),
	boolProperty(0x46, func(e *EmitterDef) *bool { return &e.NoDepthTest }),
	floatProperty(0x47, func(e *EmitterDef) *float32 { return &e.WeatherCubeDistance }),
	boolProperty(0x48, func(e *EmitterDef) *bool { return &e.RandomRotation }),
}

var propertyByID = func() map[chunk.Type]*property {
	m := make(map[chunk.Type]*property, len(emitterProperties))
	for i := range emitterProperties {
		m[chunk.Type(emitterProperties[i].id)] = &emitterProperties[i]
	}
	return m
}()

// ReadEmitterDef reads the chunks of one emitter from the current level of r,
// up to the end of the enclosing range.
func ReadEmitterDef(r *chunk.Reader) (*EmitterDef, error) {
	e := NewEmitterDef()

	if err := expectNext(r, chunkEmitterProperties); err != nil {
		return nil, err
	}
	if err := e.readProperties(r); err != nil {
		return nil, err
	}

	var err error
	if err = expectNext(r, chunkColorTexture); err != nil {
		return nil, err
	}
	if e.ColorTexture, err = r.ReadString(); err != nil {
		return nil, err
	}
	if err = expectNext(r, chunkEmitterName); err != nil {
		return nil, err
	}
	if e.Name, err = r.ReadString(); err != nil {
		return nil, err
	}
	if err = expectNext(r, chunkGroups); err != nil {
		return nil, err
	}
	if err = e.readGroups(r); err != nil {
		return nil, fmt.Errorf("emitter %q groups: %w", e.Name, err)
	}
	if err = expectNext(r, chunkTracks); err != nil {
		return nil, err
	}
	if err = e.readTracks(r); err != nil {
		return nil, fmt.Errorf("emitter %q tracks: %w", e.Name, err)
	}

	if e.RandomRotation {
		// The rotation speed track's first key holds 1 + average.
		first := e.Track(TrackRotationSpeed).First()
		if first > 0 {
			e.RandomRotationVariance /= first
			e.RandomRotationAverage = first - float32(math.Trunc(float64(first)))
		} else {
			e.RandomRotationVariance = 0
			e.RandomRotationAverage = 0
		}
	}

	typ, err := r.Next()
	if err != nil {
		return nil, err
	}
	if typ == chunkChildren {
		if e.DeathChild, err = readIndexMini(r, miniDeathChild); err != nil {
			return nil, err
		}
		if e.LifeChild, err = readIndexMini(r, miniLifeChild); err != nil {
			return nil, err
		}
		if err := expectMini(r, chunk.End); err != nil {
			return nil, err
		}
		if typ, err = r.Next(); err != nil {
			return nil, err
		}
	}
	if typ == chunkNormalTexture {
		if e.NormalTexture, err = r.ReadString(); err != nil {
			return nil, err
		}
		if typ, err = r.Next(); err != nil {
			return nil, err
		}
	}
	if typ != chunk.End {
		return nil, malformed("emitter %q: unexpected chunk %#x", e.Name, typ)
	}
	return e, nil
}

func (e *EmitterDef) readProperties(r *chunk.Reader) error {
	var st readState
	for {
		typ, err := r.NextMini()
		if err != nil {
			return err
		}
		if typ == chunk.End {
			break
		}
		p, ok := propertyByID[typ]
		if !ok {
			return fmt.Errorf("%w: %w: property %#x", ErrUnknownField, ErrMalformed, typ)
		}
		if err := p.read(e, r, &st); err != nil {
			return fmt.Errorf("property %#x: %w", typ, err)
		}
	}
	if !st.useLinkStrength {
		e.ParentLinkStrength = 0
	}
	return nil
}

func (e *EmitterDef) readGroups(r *chunk.Reader) error {
	buf := make([]byte, DistributionSize)
	for i := range e.Groups {
		if err := expectNext(r, chunkGroup); err != nil {
			return err
		}
		if err := expectNext(r, chunkGroupData); err != nil {
			return err
		}
		if err := r.Read(buf); err != nil {
			return err
		}
		if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &e.Groups[i]); err != nil {
			return fmt.Errorf("%w: group %d: %v", chunk.ErrRead, i, err)
		}
		if err := expectNext(r, chunk.End); err != nil {
			return err
		}
	}
	return expectNext(r, chunk.End)
}

func (e *EmitterDef) readTracks(r *chunk.Reader) error {
	for i := range e.Curves {
		channel := i < NumChannelTracks
		c, err := readCurve(r, channel)
		if err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
		e.Curves[i] = c
		e.TrackRefs[i] = i
	}

	// Identical channel tracks share storage.
	for i := 0; i < NumChannelTracks; i++ {
		for j := i + 1; j < NumChannelTracks; j++ {
			if e.TrackRefs[i] == i && e.Curves[i].Equal(&e.Curves[j]) {
				e.TrackRefs[j] = i
			}
		}
	}
	return expectNext(r, chunk.End)
}

// readCurve reads a track header chunk and its key chunk. Channel tracks
// store values quantised to bytes (end keys) or 1/255 integers.
func readCurve(r *chunk.Reader, channel bool) (Curve, error) {
	var c Curve
	if err := expectNext(r, chunkTrackHeader); err != nil {
		return c, err
	}

	readEnd := func(id chunk.Type) (float32, error) {
		if err := expectMini(r, id); err != nil {
			return 0, err
		}
		if channel {
			b, err := readByte(r)
			return float32(b) / 255, err
		}
		return readFloat(r)
	}
	first, err := readEnd(miniTrackFirst)
	if err != nil {
		return c, err
	}
	last, err := readEnd(miniTrackLast)
	if err != nil {
		return c, err
	}
	if err := expectMini(r, miniTrackInterp); err != nil {
		return c, err
	}
	interp, err := readUint(r)
	if err != nil {
		return c, err
	}
	if interp > uint32(Step) {
		return c, malformed("unknown interpolation %d", interp)
	}
	c.Interpolation = Interpolation(interp)
	if err := expectMini(r, chunk.End); err != nil {
		return c, err
	}

	c.Keys = append(c.Keys, Key{Time: CurveStart, Value: first})
	if err := expectNext(r, chunkTrackKeys); err != nil {
		return c, err
	}
	for {
		typ, err := r.NextMini()
		if err != nil {
			return c, err
		}
		if typ == chunk.End {
			break
		}
		if typ != miniTrackKey {
			return c, malformed("unexpected key record %#x", typ)
		}
		if r.Size() != 8 {
			return c, malformed("key record of %d bytes", r.Size())
		}

		var k Key
		if channel {
			v, err := r.ReadUint32()
			if err != nil {
				return c, err
			}
			if v > 255 {
				return c, malformed("channel key value %d exceeds 255", v)
			}
			k.Value = float32(v) / 255
		} else if k.Value, err = r.ReadFloat32(); err != nil {
			return c, err
		}
		t, err := r.ReadFloat32()
		if err != nil {
			return c, err
		}
		k.Time = t * 100
		if !(k.Time <= CurveEnd && k.Time >= c.Keys[len(c.Keys)-1].Time) {
			return c, malformed("key time %v out of order", k.Time)
		}
		c.Keys = append(c.Keys, k)
	}
	c.Keys = append(c.Keys, Key{Time: CurveEnd, Value: last})
	return c, nil
}

// Write encodes e as a sequence of chunks at the current level of w.
func (e *EmitterDef) Write(w *chunk.Writer) error {
	return e.write(w, false)
}

// writeCopy encodes e for the clipboard, without hierarchy links.
func (e *EmitterDef) writeCopy(w *chunk.Writer) error {
	return e.write(w, true)
}

func (e *EmitterDef) write(w *chunk.Writer, clipboard bool) error {
	if err := w.BeginChunk(chunkEmitterProperties); err != nil {
		return err
	}
	for i := range emitterProperties {
		if err := emitterProperties[i].write(e, w); err != nil {
			return fmt.Errorf("property %#x: %w", emitterProperties[i].id, err)
		}
	}
	if err := w.EndChunk(); err != nil {
		return err
	}

	if err := w.WriteStringChunk(chunkColorTexture, e.ColorTexture); err != nil {
		return err
	}
	if err := w.WriteStringChunk(chunkEmitterName, e.Name); err != nil {
		return err
	}
	if err := e.writeGroups(w); err != nil {
		return err
	}
	if err := e.writeTracks(w); err != nil {
		return err
	}

	death, life := uint32(noneIndex), uint32(noneIndex)
	if !clipboard {
		death, life = uint32(int32(e.DeathChild)), uint32(int32(e.LifeChild))
	}
	if err := w.BeginChunk(chunkChildren); err != nil {
		return err
	}
	if err := w.WriteMiniUint32(miniDeathChild, death); err != nil {
		return err
	}
	if err := w.WriteMiniUint32(miniLifeChild, life); err != nil {
		return err
	}
	if err := w.EndChunk(); err != nil {
		return err
	}

	if e.NormalTexture != "" {
		return w.WriteStringChunk(chunkNormalTexture, e.NormalTexture)
	}
	return nil
}

func (e *EmitterDef) writeGroups(w *chunk.Writer) error {
	groups := e.Groups
	groups[GroupLifetime] = e.LifetimeDistribution()

	if err := w.BeginChunk(chunkGroups); err != nil {
		return err
	}
	var buf bytes.Buffer
	for i := range groups {
		buf.Reset()
		if err := binary.Write(&buf, binary.LittleEndian, &groups[i]); err != nil {
			return fmt.Errorf("%w: group %d: %v", chunk.ErrWrite, i, err)
		}
		if err := w.BeginChunk(chunkGroup); err != nil {
			return err
		}
		if err := w.BeginChunk(chunkGroupData); err != nil {
			return err
		}
		if err := w.Write(buf.Bytes()); err != nil {
			return err
		}
		if err := w.EndChunk(); err != nil {
			return err
		}
		if err := w.EndChunk(); err != nil {
			return err
		}
	}
	return w.EndChunk()
}

func (e *EmitterDef) writeTracks(w *chunk.Writer) error {
	if err := w.BeginChunk(chunkTracks); err != nil {
		return err
	}
	for i := range e.TrackRefs {
		c := e.Track(i)
		channel := i < NumChannelTracks
		first, last := c.First(), c.Last()
		keys := c.Keys[1 : len(c.Keys)-1]

		if i == TrackRotationSpeed && e.RandomRotation {
			// Random rotation stores 1 + average in the first key instead.
			first, last, keys = 0, 0, nil
			if e.RandomRotationAverage*e.RandomRotationVariance != 0 {
				first = 1 + e.RandomRotationAverage
			}
		}

		if err := w.BeginChunk(chunkTrackHeader); err != nil {
			return err
		}
		if channel {
			if err := writeMiniByte(w, miniTrackFirst, quantize(first)); err != nil {
				return err
			}
			if err := writeMiniByte(w, miniTrackLast, quantize(last)); err != nil {
				return err
			}
		} else {
			if err := w.WriteMiniFloat32(miniTrackFirst, first); err != nil {
				return err
			}
			if err := w.WriteMiniFloat32(miniTrackLast, last); err != nil {
				return err
			}
		}
		if err := w.WriteMiniUint32(miniTrackInterp, uint32(c.Interpolation)); err != nil {
			return err
		}
		if err := w.EndChunk(); err != nil {
			return err
		}

		if err := w.BeginChunk(chunkTrackKeys); err != nil {
			return err
		}
		for _, k := range keys {
			if err := w.BeginMiniChunk(miniTrackKey); err != nil {
				return err
			}
			var err error
			if channel {
				err = w.WriteUint32(uint32(quantize(k.Value)))
			} else {
				err = w.WriteFloat32(k.Value)
			}
			if err != nil {
				return err
			}
			if err := w.WriteFloat32(k.Time / 100); err != nil {
				return err
			}
			if err := w.EndChunk(); err != nil {
				return err
			}
		}
		if err := w.EndChunk(); err != nil {
			return err
		}
	}
	return w.EndChunk()
}

// quantize maps a [0,1] channel value to a byte.
func quantize(v float32) uint8 {
	return uint8(max(0, min(255, math.Round(float64(v)*255))))
}

func expectNext(r *chunk.Reader, want chunk.Type) error {
	typ, err := r.Next()
	if err != nil {
		return err
	}
	if typ != want {
		return malformed("got chunk %#x, want %#x", typ, want)
	}
	return nil
}

func expectMini(r *chunk.Reader, want chunk.Type) error {
	typ, err := r.NextMini()
	if err != nil {
		return err
	}
	if typ != want {
		return malformed("got mini chunk %#x, want %#x", typ, want)
	}
	return nil
}

func expectSize(r *chunk.Reader, n int64) error {
	if r.Size() != n {
		return malformed("record of %d bytes, want %d", r.Size(), n)
	}
	return nil
}

func readByte(r *chunk.Reader) (uint8, error) {
	if err := expectSize(r, 1); err != nil {
		return 0, err
	}
	return r.ReadUint8()
}

func readBool(r *chunk.Reader) (bool, error) {
	b, err := readByte(r)
	return b != 0, err
}

func readUint(r *chunk.Reader) (uint32, error) {
	if err := expectSize(r, 4); err != nil {
		return 0, err
	}
	return r.ReadUint32()
}

func readFloat(r *chunk.Reader) (float32, error) {
	if err := expectSize(r, 4); err != nil {
		return 0, err
	}
	return r.ReadFloat32()
}

func readFloats(r *chunk.Reader, dst []float32) error {
	if err := expectSize(r, int64(4*len(dst))); err != nil {
		return err
	}
	for i := range dst {
		v, err := r.ReadFloat32()
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func readIndexMini(r *chunk.Reader, id chunk.Type) (int, error) {
	if err := expectMini(r, id); err != nil {
		return None, err
	}
	v, err := readUint(r)
	return int(int32(v)), err
}

func writeMiniByte(w *chunk.Writer, id uint8, v uint8) error {
	if err := w.BeginMiniChunk(id); err != nil {
		return err
	}
	if err := w.WriteUint8(v); err != nil {
		return err
	}
	return w.EndChunk()
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}
