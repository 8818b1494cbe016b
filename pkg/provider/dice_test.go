package provider

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDiceProviderRolls(t *testing.T) {
	Convey("Given a dice provider", t, func() {
		prvdr := NewDiceProvider()
		ctx := context.Background()

		Convey("When asked to roll a 20-sided dice", func() {
			result, err := prvdr.Invoke(ctx, "Roll a 20-sided dice")

			Convey("Then it reports the roll", func() {
				So(err, ShouldBeNil)
				So(result, ShouldContainSubstring, "20-sided dice")
			})
		})

		Convey("When asked using d-notation", func() {
			result, err := prvdr.Invoke(ctx, "roll a d12 for me")

			Convey("Then it picks up the sides", func() {
				So(err, ShouldBeNil)
				So(result, ShouldContainSubstring, "12-sided dice")
			})
		})

		Convey("When no size is given", func() {
			result, err := prvdr.Invoke(ctx, "roll the dice")

			Convey("Then it defaults to six sides", func() {
				So(err, ShouldBeNil)
				So(result, ShouldContainSubstring, "6-sided dice")
			})
		})

		Convey("When the dice is absurdly large", func() {
			_, err := prvdr.Invoke(ctx, "roll a 2000000-sided dice")

			Convey("Then it refuses with a validation error", func() {
				So(err, ShouldNotBeNil)
				So(err, ShouldHaveSameTypeAs, &ValidationError{})
			})
		})
	})
}

func TestDiceProviderPrimes(t *testing.T) {
	Convey("Given a dice provider", t, func() {
		prvdr := NewDiceProvider()
		ctx := context.Background()

		Convey("When asked whether numbers are prime", func() {
			result, err := prvdr.Invoke(ctx, "Are 7 and 8 prime numbers?")

			Convey("Then it answers for the primes", func() {
				So(err, ShouldBeNil)
				So(result, ShouldContainSubstring, "7 are prime numbers")
			})
		})

		Convey("When asked about primes without numbers", func() {
			result, err := prvdr.Invoke(ctx, "is it prime?")

			Convey("Then it asks for numbers", func() {
				So(err, ShouldBeNil)
				So(result, ShouldContainSubstring, "provide numbers")
			})
		})

		Convey("When asked to roll and check primality at once", func() {
			result, err := prvdr.Invoke(ctx, "Roll a 6-sided dice and tell me if it's prime")

			Convey("Then both answers appear", func() {
				So(err, ShouldBeNil)
				So(result, ShouldContainSubstring, "6-sided dice")
				So(result, ShouldContainSubstring, "prime")
			})
		})
	})
}

func TestDiceProviderFallback(t *testing.T) {
	Convey("Given a dice provider", t, func() {
		prvdr := NewDiceProvider()

		Convey("When the request matches nothing it knows", func() {
			result, err := prvdr.Invoke(context.Background(), "what's the weather like?")

			Convey("Then it explains what it can do", func() {
				So(err, ShouldBeNil)
				So(result, ShouldContainSubstring, "roll dice")
			})
		})

		Convey("When the context is already canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := prvdr.Invoke(ctx, "roll a dice")

			Convey("Then it returns the context error", func() {
				So(err, ShouldEqual, context.Canceled)
			})
		})
	})
}
