// Package cipher implements the Sapphire II stream cipher used to
// encipher locked SWORD modules.
//
// The cipher keeps a 256-byte permutation table and five one-byte
// registers (rotor, ratchet, avalanche, last plaintext, last
// ciphertext). Every byte processed mutates the table, so a State must
// be freshly keyed for each independently enciphered block.
package cipher

// State holds the cipher's mutable keystream state.
type State struct {
	cards      [256]byte
	rotor      byte
	ratchet    byte
	avalanche  byte
	lastPlain  byte
	lastCipher byte
}

// New returns a cipher state keyed with key. A nil or empty key yields
// the fixed hash-ready schedule used by unkeyed streams.
func New(key []byte) *State {
	s := &State{}
	if len(key) == 0 {
		s.hashInit()
		return s
	}
	for i := range s.cards {
		s.cards[i] = byte(i)
	}
	var rsum byte
	keyPos := 0
	for i := 255; i >= 0; i-- {
		toSwap := s.keyRand(i, key, &rsum, &keyPos)
		s.cards[i], s.cards[toSwap] = s.cards[toSwap], s.cards[i]
	}
	s.rotor = s.cards[1]
	s.ratchet = s.cards[3]
	s.avalanche = s.cards[5]
	s.lastPlain = s.cards[7]
	s.lastCipher = s.cards[rsum]
	return s
}

// hashInit sets the fixed schedule: small primes for the registers and
// the reversed identity permutation for the card table.
func (s *State) hashInit() {
	s.rotor = 1
	s.ratchet = 3
	s.avalanche = 5
	s.lastPlain = 7
	s.lastCipher = 11
	for i := range s.cards {
		s.cards[i] = byte(255 - i)
	}
}

// keyRand returns a pseudo-random value in [0, limit], folding key
// bytes into the running sum. After 11 rejected draws it clamps with a
// modulo so the loop always terminates.
func (s *State) keyRand(limit int, key []byte, rsum *byte, keyPos *int) int {
	if limit == 0 {
		return 0
	}
	retryLimiter := 0
	mask := 1
	for mask < limit {
		mask = mask<<1 + 1
	}
	var u int
	for {
		*rsum = s.cards[*rsum] + key[*keyPos]
		*keyPos++
		if *keyPos >= len(key) {
			*keyPos = 0
			*rsum += byte(len(key))
		}
		u = mask & int(*rsum)
		retryLimiter++
		if retryLimiter > 11 {
			u %= limit
		}
		if u <= limit {
			break
		}
	}
	return u
}

// mix performs the per-byte table permutation and returns the
// keystream byte. Byte arithmetic wraps mod 256.
func (s *State) mix() byte {
	s.ratchet += s.cards[s.rotor]
	s.rotor++
	swapTemp := s.cards[s.lastCipher]
	s.cards[s.lastCipher] = s.cards[s.ratchet]
	s.cards[s.ratchet] = s.cards[s.lastPlain]
	s.cards[s.lastPlain] = s.cards[s.rotor]
	s.cards[s.rotor] = swapTemp
	s.avalanche += s.cards[swapTemp]
	return s.cards[s.cards[s.ratchet]+s.cards[s.rotor]] ^
		s.cards[s.cards[s.cards[s.lastPlain]+s.cards[s.lastCipher]+s.cards[s.avalanche]]]
}

// DecodeByte deciphers a single byte and advances the state.
func (s *State) DecodeByte(b byte) byte {
	out := b ^ s.mix()
	s.lastPlain = out
	s.lastCipher = b
	return out
}

// EncodeByte enciphers a single byte and advances the state.
func (s *State) EncodeByte(b byte) byte {
	out := b ^ s.mix()
	s.lastPlain = b
	s.lastCipher = out
	return out
}

// Decode deciphers src into a new slice.
func (s *State) Decode(src []byte) []byte {
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = s.DecodeByte(b)
	}
	return out
}

// Encode enciphers src into a new slice.
func (s *State) Encode(src []byte) []byte {
	out := make([]byte, len(src))
	for i, b := range src {
		out[i] = s.EncodeByte(b)
	}
	return out
}

// DecodeBlock deciphers one self-contained block with a fresh state.
func DecodeBlock(block, key []byte) []byte {
	return New(key).Decode(block)
}
