package reg

import "testing"

func TestBankingIsolatesSPAndLR(t *testing.T) {
	f := New() // starts in Supervisor
	f.SetSP(0x1000)
	f.SetLR(0x2000)

	f.SetMode(IRQ)
	f.SetSP(0x3000)
	f.SetLR(0x4000)

	f.SetMode(Supervisor)
	if f.SP() != 0x1000 || f.LR() != 0x2000 {
		t.Fatalf("svc bank got sp=%#x lr=%#x, want 1000/2000", f.SP(), f.LR())
	}

	f.SetMode(IRQ)
	if f.SP() != 0x3000 || f.LR() != 0x4000 {
		t.Fatalf("irq bank got sp=%#x lr=%#x, want 3000/4000", f.SP(), f.LR())
	}
}

func TestUserAndSystemShareBank(t *testing.T) {
	f := New()
	f.SetMode(User)
	f.SetSP(0xAAAA)
	f.SetMode(System)
	if f.SP() != 0xAAAA {
		t.Fatalf("user/system should share a bank, got sp=%#x", f.SP())
	}
}

func TestFIQBanksR8ThroughR12(t *testing.T) {
	f := New()
	f.SetMode(User)
	for i := 8; i <= 12; i++ {
		f.SetR(i, uint32(i))
	}
	f.SetMode(FIQ)
	for i := 8; i <= 12; i++ {
		f.SetR(i, uint32(i+100))
	}
	f.SetMode(User)
	for i := 8; i <= 12; i++ {
		if got := f.R(i); got != uint32(i) {
			t.Fatalf("R%d got %d want %d after returning from FIQ", i, got, i)
		}
	}
}

func TestSPSRPerModeAndNoneForUserSystem(t *testing.T) {
	f := New()
	f.SetMode(Supervisor)
	f.SetSPSR(NewPSR(User, ARM, false, false))
	f.SetMode(Abort)
	f.SetSPSR(NewPSR(IRQ, Thumb, true, false))

	f.SetMode(Supervisor)
	if f.SPSR().Mode() != User {
		t.Fatalf("svc SPSR got mode %v want User", f.SPSR().Mode())
	}
	f.SetMode(Abort)
	if f.SPSR().Mode() != IRQ || f.SPSR().State() != Thumb {
		t.Fatalf("abt SPSR got mode=%v state=%v", f.SPSR().Mode(), f.SPSR().State())
	}
	f.SetMode(User)
	f.SetSPSR(NewPSR(IRQ, Thumb, true, false))
	if f.SPSR() != f.CPSR() {
		t.Fatalf("user mode has no SPSR: SPSR() should return the CPSR, got %#x", uint32(f.SPSR()))
	}
}

func TestInvalidModeFallsBackToUndefinedInstr(t *testing.T) {
	p := PSR(0x00000000) // M field = 0, not a valid mode
	if p.Mode() != UndefinedInstr {
		t.Fatalf("invalid mode bits should fall back to UndefinedInstr, got %v", p.Mode())
	}
	if p.RawMode().Valid() {
		t.Fatalf("raw mode 0 should not report itself as valid")
	}
}
