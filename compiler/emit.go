package compiler

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Emitter: assembles the final source text
// ---------------------------------------------------------------------------

// Emitter writes the kernel source of a sorted context: the preamble, every
// scope as a function with callees first, then one entry point per
// dispatch.
type Emitter struct {
	ctx *Context
	b   strings.Builder
}

// Source returns the complete kernel source.
func (e *Emitter) Source() string {
	e.b.Reset()
	e.preamble()
	e.library()
	for _, s := range e.ctx.Scopes() {
		e.scope(s)
	}
	for _, d := range e.ctx.Dispatches() {
		e.entry(d)
	}
	return e.b.String()
}

func (e *Emitter) printf(format string, args ...any) {
	fmt.Fprintf(&e.b, format, args...)
}

const segmentDecl = `struct Segment {
	offset: vec3<f32>,
	scale: f32,
	permutation_seed: vec3<i32>,
	size: u32,
	modulo_seed: vec3<i32>,
	pad: u32,
}

@group(0) @binding(0) var<uniform> segment: Segment;
@group(0) @binding(1) var<storage, read> params: array<vec4<f32>>;
`

const positionHelpers = `fn vg_size(r: u32) -> u32 {
	return max(segment.size >> r, 1u);
}

fn vg_position3(c: vec3<u32>, r: u32) -> vec3<f32> {
	return segment.offset + vec3<f32>(c) * segment.scale * f32(1u << r);
}

fn vg_position2(c: vec2<u32>, r: u32) -> vec3<f32> {
	let step = segment.scale * f32(1u << r);
	return vec3<f32>(segment.offset.x + f32(c.x) * step, 0.0, segment.offset.z + f32(c.y) * step);
}

fn vg_seed3() -> vec3<f32> {
	return vec3<f32>(segment.permutation_seed % max(segment.modulo_seed, vec3<i32>(1)));
}
`

func (e *Emitter) preamble() {
	c := e.ctx
	e.printf("// Generated by voxgraph. Structure %s.\n", c.Sum().Short())
	for _, p := range c.params {
		if p.Injected {
			e.printf("// params[%d]: %s (%s)\n", p.Slot, p.Name, p.Shape)
		}
	}
	e.printf("\n%s\n", segmentDecl)
	for _, b := range c.buffers {
		e.printf("@group(%d) @binding(%d) var<storage, read_write> %s: array<%s>;\n",
			b.Group, b.Binding, b.Symbol, b.Shape.StorageWGSL())
	}
	e.printf("\n")
	e.printf("%s\n", formula3.encodeWGSL())
	e.printf("%s\n", formula3.decodeWGSL())
	e.printf("%s\n", formula2.encodeWGSL())
	e.printf("%s\n", formula2.decodeWGSL())
	e.printf("%s\n", positionHelpers)
}

func (e *Emitter) library() {
	for _, name := range resolveLibrary(e.ctx.library) {
		e.printf("%s\n", library[name].src)
	}
}

func (e *Emitter) scope(s *Scope) {
	e.printf("%s {\n", s.Signature())
	for _, line := range s.Lines {
		e.printf("\t%s\n", line)
	}
	e.printf("}\n\n")
}

func (e *Emitter) entry(d *KernelDispatch) {
	wg := e.ctx.opts.Workgroup
	e.printf("@compute @workgroup_size(%d)\n", wg)
	e.printf("fn %s(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {\n", d.Name)
	e.printf("\tlet index = gid.x + gid.y * groups.x * %du;\n", wg)
	e.printf("\tlet n = vg_size(%du);\n", d.Reduction)
	if d.Dims == Dims2 {
		e.printf("\tif (index >= n * n) {\n\t\treturn;\n\t}\n")
		e.printf("\tlet position = vg_position2(vg_decode2(index, n), %du);\n", d.Reduction)
	} else {
		e.printf("\tif (index >= n * n * n) {\n\t\treturn;\n\t}\n")
		e.printf("\tlet position = vg_position3(vg_decode3(index, n), %du);\n", d.Reduction)
	}
	args := []string{"position"}
	for i, o := range d.Outputs {
		e.printf("\tvar o%d: %s;\n", i, o.Node.Shape().WGSL())
		args = append(args, fmt.Sprintf("&o%d", i))
	}
	e.printf("\t%s(%s);\n", d.entry.Name, strings.Join(args, ", "))
	for i, o := range d.Outputs {
		if o.Node.Shape() == Bool {
			e.printf("\t%s[index] = select(0u, 1u, o%d);\n", o.Buffer, i)
			continue
		}
		e.printf("\t%s[index] = o%d;\n", o.Buffer, i)
	}
	e.printf("}\n\n")
}
