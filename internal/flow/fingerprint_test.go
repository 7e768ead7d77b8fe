package flow

func (s *UnitTestSuite) TestNormalizedText() {
	s.Equal("hello world", NormalizedText("  Hello World \n"))
	s.Equal("", NormalizedText(""))
	s.Equal("", NormalizedText("   "))
}

func (s *UnitTestSuite) TestTokenFingerprint() {
	s.Equal("a|b|c", TokenFingerprint("c b a"))
	s.Equal("a|b", TokenFingerprint("B a b\tA"))
	s.Equal("", TokenFingerprint(""))
	s.Equal("", TokenFingerprint(" \t "))
	s.Equal("2pm|arriving|at|package", TokenFingerprint("Package arriving at 2PM"))
}

func (s *UnitTestSuite) TestEventFingerprint() {
	s.Equal("message|new", EventFingerprint("New", "message"))
	s.Equal("only", EventFingerprint("", "only"))
	s.Equal("", EventFingerprint("", ""))
}

func (s *UnitTestSuite) TestJaccardSimilarity() {
	s.Equal(0.0, JaccardSimilarity("", "anything"))
	s.Equal(0.0, JaccardSimilarity("anything", ""))
	s.Equal(0.0, JaccardSimilarity("", ""))
	s.Equal(1.0, JaccardSimilarity("a|b", "a|b"))
	s.Equal(0.0, JaccardSimilarity("a|b", "c|d"))
	s.InDelta(1.0/3.0, JaccardSimilarity("a|b", "b|c"), 1e-9)

	shipped := EventFingerprint("", "Your order has shipped and will arrive tomorrow")
	shipped2 := EventFingerprint("", "Your order shipped and will arrive tomorrow")
	s.InDelta(7.0/8.0, JaccardSimilarity(shipped, shipped2), 1e-9)
	s.GreaterOrEqual(JaccardSimilarity(shipped, shipped2), NearDuplicateThreshold)
}
