package compiler

import "sort"

// ---------------------------------------------------------------------------
// Library routines
//
// Fixed helper functions built-in nodes call into. Only routines that were
// required during emission are written, dependencies first.
// ---------------------------------------------------------------------------

type routine struct {
	deps []string
	src  string
}

var library = map[string]routine{
	"vg_hash_u32": {src: `fn vg_hash_u32(x: u32) -> u32 {
	let s = x * 747796405u + 2891336453u;
	let w = ((s >> ((s >> 28u) + 4u)) ^ s) * 277803737u;
	return (w >> 22u) ^ w;
}
`},
	"vg_hash2": {deps: []string{"vg_hash_u32"}, src: `fn vg_hash2(p: vec2<f32>) -> f32 {
	let q = bitcast<vec2<u32>>(vec2<i32>(floor(p)));
	return f32(vg_hash_u32(q.x ^ vg_hash_u32(q.y))) / 4294967295.0;
}
`},
	"vg_hash3": {deps: []string{"vg_hash_u32"}, src: `fn vg_hash3(p: vec3<f32>) -> f32 {
	let q = bitcast<vec3<u32>>(vec3<i32>(floor(p)));
	return f32(vg_hash_u32(q.x ^ vg_hash_u32(q.y ^ vg_hash_u32(q.z)))) / 4294967295.0;
}
`},
	"vg_hash22": {deps: []string{"vg_hash2"}, src: `fn vg_hash22(p: vec2<f32>) -> vec2<f32> {
	return vec2<f32>(vg_hash2(p), vg_hash2(p + vec2<f32>(127.0, 311.0)));
}
`},
	"vg_hash33": {deps: []string{"vg_hash3"}, src: `fn vg_hash33(p: vec3<f32>) -> vec3<f32> {
	return vec3<f32>(
		vg_hash3(p),
		vg_hash3(p + vec3<f32>(127.0, 311.0, 74.0)),
		vg_hash3(p + vec3<f32>(269.0, 183.0, 246.0))
	);
}
`},
	"vg_value2": {deps: []string{"vg_hash2"}, src: `fn vg_value2(p: vec2<f32>) -> f32 {
	let i = floor(p);
	let f = fract(p);
	let u = f * f * (3.0 - 2.0 * f);
	let a = vg_hash2(i);
	let b = vg_hash2(i + vec2<f32>(1.0, 0.0));
	let c = vg_hash2(i + vec2<f32>(0.0, 1.0));
	let d = vg_hash2(i + vec2<f32>(1.0, 1.0));
	return mix(mix(a, b, u.x), mix(c, d, u.x), u.y) * 2.0 - 1.0;
}
`},
	"vg_value3": {deps: []string{"vg_hash3"}, src: `fn vg_value3(p: vec3<f32>) -> f32 {
	let i = floor(p);
	let f = fract(p);
	let u = f * f * (3.0 - 2.0 * f);
	let x00 = mix(vg_hash3(i), vg_hash3(i + vec3<f32>(1.0, 0.0, 0.0)), u.x);
	let x10 = mix(vg_hash3(i + vec3<f32>(0.0, 1.0, 0.0)), vg_hash3(i + vec3<f32>(1.0, 1.0, 0.0)), u.x);
	let x01 = mix(vg_hash3(i + vec3<f32>(0.0, 0.0, 1.0)), vg_hash3(i + vec3<f32>(1.0, 0.0, 1.0)), u.x);
	let x11 = mix(vg_hash3(i + vec3<f32>(0.0, 1.0, 1.0)), vg_hash3(i + vec3<f32>(1.0, 1.0, 1.0)), u.x);
	return mix(mix(x00, x10, u.y), mix(x01, x11, u.y), u.z) * 2.0 - 1.0;
}
`},
	"vg_grad2": {deps: []string{"vg_hash2"}, src: `fn vg_grad2(i: vec2<f32>, f: vec2<f32>) -> f32 {
	let h = vg_hash2(i) * 6.2831853;
	return dot(vec2<f32>(cos(h), sin(h)), f);
}
`},
	"vg_grad3": {deps: []string{"vg_hash33"}, src: `fn vg_grad3(i: vec3<f32>, f: vec3<f32>) -> f32 {
	let g = normalize(vg_hash33(i) * 2.0 - 1.0 + vec3<f32>(1e-5));
	return dot(g, f);
}
`},
	"vg_perlin2": {deps: []string{"vg_grad2"}, src: `fn vg_perlin2(p: vec2<f32>) -> f32 {
	let i = floor(p);
	let f = fract(p);
	let u = f * f * f * (f * (f * 6.0 - 15.0) + 10.0);
	let a = vg_grad2(i, f);
	let b = vg_grad2(i + vec2<f32>(1.0, 0.0), f - vec2<f32>(1.0, 0.0));
	let c = vg_grad2(i + vec2<f32>(0.0, 1.0), f - vec2<f32>(0.0, 1.0));
	let d = vg_grad2(i + vec2<f32>(1.0, 1.0), f - vec2<f32>(1.0, 1.0));
	return mix(mix(a, b, u.x), mix(c, d, u.x), u.y) * 1.4142135;
}
`},
	"vg_perlin3": {deps: []string{"vg_grad3"}, src: `fn vg_perlin3(p: vec3<f32>) -> f32 {
	let i = floor(p);
	let f = fract(p);
	let u = f * f * f * (f * (f * 6.0 - 15.0) + 10.0);
	let x00 = mix(vg_grad3(i, f), vg_grad3(i + vec3<f32>(1.0, 0.0, 0.0), f - vec3<f32>(1.0, 0.0, 0.0)), u.x);
	let x10 = mix(vg_grad3(i + vec3<f32>(0.0, 1.0, 0.0), f - vec3<f32>(0.0, 1.0, 0.0)), vg_grad3(i + vec3<f32>(1.0, 1.0, 0.0), f - vec3<f32>(1.0, 1.0, 0.0)), u.x);
	let x01 = mix(vg_grad3(i + vec3<f32>(0.0, 0.0, 1.0), f - vec3<f32>(0.0, 0.0, 1.0)), vg_grad3(i + vec3<f32>(1.0, 0.0, 1.0), f - vec3<f32>(1.0, 0.0, 1.0)), u.x);
	let x11 = mix(vg_grad3(i + vec3<f32>(0.0, 1.0, 1.0), f - vec3<f32>(0.0, 1.0, 1.0)), vg_grad3(i + vec3<f32>(1.0, 1.0, 1.0), f - vec3<f32>(1.0, 1.0, 1.0)), u.x);
	return mix(mix(x00, x10, u.y), mix(x01, x11, u.y), u.z);
}
`},
	"vg_sdf_box": {src: `fn vg_sdf_box(p: vec3<f32>, b: vec3<f32>) -> f32 {
	let q = abs(p) - b;
	return length(max(q, vec3<f32>(0.0))) + min(max(q.x, max(q.y, q.z)), 0.0);
}
`},
	"vg_sdf_torus": {src: `fn vg_sdf_torus(p: vec3<f32>, major: f32, minor: f32) -> f32 {
	let q = vec2<f32>(length(p.xz) - major, p.y);
	return length(q) - minor;
}
`},
	"vg_sdf_cylinder": {src: `fn vg_sdf_cylinder(p: vec3<f32>, r: f32, h: f32) -> f32 {
	let d = abs(vec2<f32>(length(p.xz), p.y)) - vec2<f32>(r, h);
	return min(max(d.x, d.y), 0.0) + length(max(d, vec2<f32>(0.0)));
}
`},
	"vg_smooth_min": {src: `fn vg_smooth_min(a: f32, b: f32, k: f32) -> f32 {
	let h = clamp(0.5 + 0.5 * (b - a) / max(k, 1e-6), 0.0, 1.0);
	return mix(b, a, h) - k * h * (1.0 - h);
}
`},
	"vg_smooth_max": {deps: []string{"vg_smooth_min"}, src: `fn vg_smooth_max(a: f32, b: f32, k: f32) -> f32 {
	return -vg_smooth_min(-a, -b, k);
}
`},
	"vg_quat_axis_angle": {src: `fn vg_quat_axis_angle(axis: vec3<f32>, angle: f32) -> vec4<f32> {
	return vec4<f32>(normalize(axis) * sin(angle * 0.5), cos(angle * 0.5));
}
`},
	"vg_quat_euler": {src: `fn vg_quat_euler(e: vec3<f32>) -> vec4<f32> {
	let c = cos(e * 0.5);
	let s = sin(e * 0.5);
	return vec4<f32>(
		s.x * c.y * c.z - c.x * s.y * s.z,
		c.x * s.y * c.z + s.x * c.y * s.z,
		c.x * c.y * s.z - s.x * s.y * c.z,
		c.x * c.y * c.z + s.x * s.y * s.z
	);
}
`},
	"vg_quat_rotate": {src: `fn vg_quat_rotate(v: vec3<f32>, q: vec4<f32>) -> vec3<f32> {
	let t = 2.0 * cross(q.xyz, v);
	return v + q.w * t + cross(q.xyz, t);
}
`},
	"vg_cache_index": {src: `fn vg_cache_index(p: vec3<f32>, r: u32) -> u32 {
	let n = vg_size(r);
	let v = vec2<i32>(round((p.xz - segment.offset.xz) / segment.scale));
	let c = clamp(v >> vec2<u32>(r), vec2<i32>(0), vec2<i32>(i32(n) - 1));
	return vg_encode2(vec2<u32>(c), n);
}
`},
}

// resolveLibrary returns the required routines in emission order: sorted
// by name, each preceded by its dependencies.
func resolveLibrary(required map[string]bool) []string {
	names := make([]string, 0, len(required))
	for name := range required {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []string
	done := make(map[string]bool, len(names))
	var visit func(string)
	visit = func(name string) {
		if done[name] {
			return
		}
		done[name] = true
		for _, dep := range library[name].deps {
			visit(dep)
		}
		order = append(order, name)
	}
	for _, name := range names {
		visit(name)
	}
	return order
}
