// Package veridraw provides verifiable random number draws and statistical
// randomness auditing. Entropy is aggregated from heterogeneous sources,
// whitened with a von Neumann extractor, reduced to a seed and drawn from
// without modulo bias. Every draw is provable: the whitened bits are
// exportable and the published fingerprint can be recomputed from them.
package veridraw

// Version of the veridraw library and service.
const Version = "0.3.1"
