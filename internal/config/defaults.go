package config

// Values the tunnel environment always forces. The engine never listens for
// inbound peerings or admin connections from inside the tunnel process, and
// the interface is owned by the host, not the engine.
const (
	ForcedAdminListen = "none"
	ForcedIfName      = "dummy"
)

// DefaultMulticastRegex matches the wired and wireless interfaces beaconed on
// by default.
const DefaultMulticastRegex = "en.*"

var autoStartFlags = []string{AutoStartAny, AutoStartWiFi, AutoStartEthernet, AutoStartMobile}

// FixUp normalizes the document in place. It is idempotent and runs on every
// load and before every persist. Apart from the forced fields it only fills
// in what is missing; a present value is never replaced, whatever its type.
func (s *Store) FixUp() {
	s.root.put(KeyListen, Strings())
	s.root.put(KeyAdminListen, String(ForcedAdminListen))
	s.root.put(KeyIfName, String(ForcedIfName))

	s.fixAutoStart()
	s.fixMulticast()

	if _, ok := s.root.Lookup(KeyNodeInfo); !ok {
		s.root.put(KeyNodeInfo, Mapping())
	}

	if _, ok := s.root.Lookup(KeyPeers); !ok {
		s.root.put(KeyPeers, Strings())
	}

	// Older documents only carried the signing key.
	if pk, ok := s.String(KeyPublicKey); !ok || pk == "" {
		if spk, ok := s.String(KeySigningPublicKey); ok && spk != "" {
			s.root.put(KeyPublicKey, String(spk))
		}
	}
}

func (s *Store) fixAutoStart() {
	sec, ok := s.root.Lookup(KeyAutoStart)
	if !ok {
		sec = Mapping()
	} else if sec.Kind() != KindMapping {
		return
	}
	for _, flag := range autoStartFlags {
		if _, ok := sec.Lookup(flag); !ok {
			sec = sec.With(flag, Bool(false))
		}
	}
	s.root.put(KeyAutoStart, sec)
}

// DefaultMulticastInterface is the record seeded when none is configured.
func DefaultMulticastInterface() Value {
	return MulticastInterface(DefaultMulticastRegex, true, true)
}

// MulticastInterface builds one MulticastInterfaces record.
func MulticastInterface(regex string, beacon, listen bool) Value {
	return Mapping(
		Field{"Regex", String(regex)},
		Field{"Beacon", Bool(beacon)},
		Field{"Listen", Bool(listen)},
	)
}

func (s *Store) fixMulticast() {
	v, ok := s.root.Lookup(KeyMulticastInterfaces)
	items, isSeq := v.AsSequence()
	if ok && !isSeq {
		return
	}
	if len(items) == 0 {
		s.root.put(KeyMulticastInterfaces, Sequence(DefaultMulticastInterface()))
		return
	}

	// Legacy documents list bare regexes.
	changed := false
	for i, item := range items {
		if regex, ok := item.AsString(); ok {
			items[i] = MulticastInterface(regex, true, true)
			changed = true
		}
	}
	if changed {
		s.root.put(KeyMulticastInterfaces, Sequence(items...))
	}
}
