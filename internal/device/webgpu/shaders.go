//go:build windows

package webgpu

// gemmShader computes C[b] = alpha * A[b] @ B[b] + beta * C[b] + bias.
// A is [M, K], B is [K, N], C is [M, N]; a zero batch stride broadcasts.
const gemmShader = `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read> bias: array<f32>;
@group(0) @binding(3) var<storage, read_write> result: array<f32>;

struct Params {
    M: u32,
    K: u32,
    N: u32,
    batches: u32,
    a_batch_stride: u32,
    b_batch_stride: u32,
    has_bias: u32,
    _pad: u32,
    alpha: f32,
    beta: f32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(16, 16)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.y;
    let col = global_id.x;
    let batch = global_id.z;

    if (row >= params.M || col >= params.N || batch >= params.batches) {
        return;
    }

    let a_base = batch * params.a_batch_stride;
    let b_base = batch * params.b_batch_stride;

    var sum: f32 = 0.0;
    for (var k: u32 = 0u; k < params.K; k = k + 1u) {
        sum = sum + a[a_base + row * params.K + k] * b[b_base + k * params.N + col];
    }

    let c_idx = (batch * params.M + row) * params.N + col;
    var value = params.alpha * sum;
    if (params.beta != 0.0) {
        value = value + params.beta * result[c_idx];
    }
    if (params.has_bias != 0u) {
        value = value + bias[col];
    }
    result[c_idx] = value;
}
`
